package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Level is the name of a training section. The customer's level is always the
// name of the section they are currently working on.
type Level string

const (
	LevelEinsteiger       Level = "Einsteiger"
	LevelGrundlagen       Level = "Grundlagen"
	LevelFortgeschrittene Level = "Fortgeschrittene"
	LevelMasterclass      Level = "Masterclass"
	LevelExpert           Level = "Expert"
)

// Levels is the fixed curriculum order.
var Levels = []Level{
	LevelEinsteiger,
	LevelGrundlagen,
	LevelFortgeschrittene,
	LevelMasterclass,
	LevelExpert,
}

// SectionStatus represents the status of a training section
type SectionStatus string

const (
	SectionLocked    SectionStatus = "Gesperrt"
	SectionCurrent   SectionStatus = "Aktuell"
	SectionCompleted SectionStatus = "Abgeschlossen"
)

// ExpertDisplayHours is the milestone target shown for the Expert tier.
// Expert hours keep accumulating past it.
const ExpertDisplayHours = 500

// TrainingSection is one level of the curriculum as tracked for a customer
type TrainingSection struct {
	Position       int           `json:"position"`
	Name           Level         `json:"name"`
	RequiredHours  int           `json:"requiredHours"`
	CompletedHours int           `json:"completedHours"`
	Status         SectionStatus `json:"status"`
}

// Uncapped reports whether completed hours may grow past RequiredHours.
func (s TrainingSection) Uncapped() bool {
	return s.Name == LevelExpert
}

// TrainingProgress is the ordered list of sections stored as JSONB
type TrainingProgress []TrainingSection

// NewTrainingProgress builds the registration template: the first section is
// current, every other section is locked.
func NewTrainingProgress(requiredHours map[Level]int) TrainingProgress {
	progress := make(TrainingProgress, 0, len(Levels))
	for i, level := range Levels {
		status := SectionLocked
		if i == 0 {
			status = SectionCurrent
		}
		hours := requiredHours[level]
		if level == LevelExpert && hours == 0 {
			hours = ExpertDisplayHours
		}
		progress = append(progress, TrainingSection{
			Position:      i + 1,
			Name:          level,
			RequiredHours: hours,
			Status:        status,
		})
	}
	return progress
}

// CurrentIndex returns the index of the Aktuell section or -1.
func (p TrainingProgress) CurrentIndex() int {
	for i, s := range p {
		if s.Status == SectionCurrent {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no memory with p
func (p TrainingProgress) Clone() TrainingProgress {
	if p == nil {
		return nil
	}
	out := make(TrainingProgress, len(p))
	copy(out, p)
	return out
}

// Value implements driver.Valuer for TrainingProgress
func (p TrainingProgress) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for TrainingProgress
func (p *TrainingProgress) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return errors.New("type assertion to []byte failed")
	}
}
