package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Float64List is a custom type for a JSONB array of numbers
type Float64List []float64

// Scan implements the sql.Scanner interface
func (l *Float64List) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, l)
}

// Value implements the driver.Valuer interface
func (l Float64List) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// MatchingSettings controls group formation and the auto-match sweep
type MatchingSettings struct {
	ID                 uint        `gorm:"primaryKey" json:"id"`
	Thresholds         Float64List `gorm:"type:jsonb" json:"thresholds"` // descending schedule, terminal 0 guarantees grouping
	SeedAttempts       int         `gorm:"default:10" json:"seed_attempts"`
	MinGroupSize       int         `gorm:"default:3" json:"min_group_size"`
	MaxGroupSize       int         `gorm:"default:5" json:"max_group_size"`
	SweepEnabled       bool        `gorm:"default:true" json:"sweep_enabled"`
	SweepIntervalMinutes int       `gorm:"default:60" json:"sweep_interval_minutes"`
	AutoMatchLeadHours int         `gorm:"default:24" json:"auto_match_lead_hours"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func (MatchingSettings) TableName() string {
	return "matching_settings"
}

// NewDefaultMatchingSettings returns settings with default values
func NewDefaultMatchingSettings() *MatchingSettings {
	return &MatchingSettings{
		Thresholds:           Float64List{70, 65, 60, 55, 50, 0},
		SeedAttempts:         10,
		MinGroupSize:         3,
		MaxGroupSize:         5,
		SweepEnabled:         true,
		SweepIntervalMinutes: 60,
		AutoMatchLeadHours:   24,
	}
}

// GetOrCreateMatchingSettings returns the settings row, creating defaults if missing
func GetOrCreateMatchingSettings(db *gorm.DB) (*MatchingSettings, error) {
	var settings MatchingSettings
	err := db.First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	defaults := NewDefaultMatchingSettings()
	if err := db.Create(defaults).Error; err != nil {
		return nil, err
	}
	return defaults, nil
}

// UpdateMatchingSettings persists changes to the settings row
func UpdateMatchingSettings(db *gorm.DB, settings *MatchingSettings) error {
	if len(settings.Thresholds) == 0 {
		return errors.New("threshold schedule cannot be empty")
	}
	if settings.MinGroupSize < 2 || settings.MaxGroupSize < settings.MinGroupSize {
		return errors.New("invalid group size bounds")
	}
	return db.Save(settings).Error
}
