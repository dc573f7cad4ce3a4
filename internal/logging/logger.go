package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Configure sets level and format of the standard logrus logger from
// log.level and log.format.
func Configure() {
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(viper.GetString("log.format"), "text") {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

// Component returns an entry tagged with the emitting component
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
