package config

import (
	"strings"

	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// LoadLedgerConfig returns the pricing and curriculum settings. Values that
// are not configured keep the defaults from ledger.DefaultConfig.
func LoadLedgerConfig() ledger.Config {
	cfg := ledger.DefaultConfig()

	if raw := viper.GetString("ledger.session_price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil || !price.IsPositive() {
			logrus.WithField("value", raw).Warn("Ignoring invalid ledger.session_price")
		} else {
			cfg.SessionPrice = price
		}
	}

	if marker := viper.GetString("ledger.session_marker"); marker != "" {
		cfg.SessionMarker = marker
	}
	if viper.IsSet("ledger.match_session_marker") {
		cfg.MatchSessionMarker = viper.GetBool("ledger.match_session_marker")
	}
	if desc := viper.GetString("ledger.recharge_description"); desc != "" {
		cfg.RechargeDescription = desc
	}

	// ledger.required_hours.<level> overrides the curriculum template
	for _, level := range models.Levels {
		key := "ledger.required_hours." + strings.ToLower(string(level))
		if hours := viper.GetInt(key); hours > 0 {
			cfg.RequiredHours[level] = hours
		}
	}

	return cfg
}
