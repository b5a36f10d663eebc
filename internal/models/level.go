package models

import (
	"errors"
	"time"
)

// LevelDirection tells which side of the target price triggers a level.
type LevelDirection string

const (
	LevelAbove LevelDirection = "above"
	LevelBelow LevelDirection = "below"
	LevelBoth  LevelDirection = "both"
)

// PriceLevel is a configured price alert level for one symbol.
// Levels live in the level document keyed by symbol; entries with
// Dynamic set are owned by the auto-detector and replaced wholesale on
// refresh, while user-entered entries are preserved.
type PriceLevel struct {
	ID                 string         `yaml:"id"`
	Price              float64        `yaml:"price"`
	Direction          LevelDirection `yaml:"type"`
	Description        string         `yaml:"description,omitempty"`
	Recurring          bool           `yaml:"recurring,omitempty"`
	Expiration         *time.Time     `yaml:"expiration,omitempty"`
	Group              string         `yaml:"group,omitempty"`
	GroupRequiredCount int            `yaml:"group_required_count,omitempty"`
	Dynamic            bool           `yaml:"dynamic,omitempty"`
}

// Validate checks level field constraints.
func (l *PriceLevel) Validate() error {
	if l.ID == "" {
		return errors.New("level ID must not be empty")
	}
	if l.Price <= 0 {
		return errors.New("level price must be positive")
	}
	switch l.Direction {
	case LevelAbove, LevelBelow, LevelBoth:
	default:
		return errors.New("level type must be above, below, or both")
	}
	if l.GroupRequiredCount < 0 {
		return errors.New("group required count must not be negative")
	}
	if l.GroupRequiredCount > 0 && l.Group == "" {
		return errors.New("group required count set without a group")
	}
	return nil
}

// Expired reports whether the level's expiration has passed at now.
// Levels without an expiration never expire.
func (l *PriceLevel) Expired(now time.Time) bool {
	return l.Expiration != nil && now.After(*l.Expiration)
}
