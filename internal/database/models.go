package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// ScoreMap stores pairwise scores keyed by the other member's participant ID.
// Keys are decimal strings because JSON object keys must be strings.
type ScoreMap map[string]float64

// Scan implements the sql.Scanner interface
func (m *ScoreMap) Scan(value interface{}) error {
	if value == nil {
		*m = make(map[string]float64)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface
func (m ScoreMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Get returns the score against the given participant
func (m ScoreMap) Get(participantID uint) (float64, bool) {
	score, ok := m[scoreKey(participantID)]
	return score, ok
}

// Set records the score against the given participant
func (m ScoreMap) Set(participantID uint, score float64) {
	m[scoreKey(participantID)] = score
}

// Remove deletes the entry for the given participant
func (m ScoreMap) Remove(participantID uint) {
	delete(m, scoreKey(participantID))
}

// ParticipantIDs returns the participant IDs present in the map
func (m ScoreMap) ParticipantIDs() []uint {
	ids := make([]uint, 0, len(m))
	for k := range m {
		if id, err := strconv.ParseUint(k, 10, 64); err == nil {
			ids = append(ids, uint(id))
		}
	}
	return ids
}

func scoreKey(participantID uint) string {
	return strconv.FormatUint(uint64(participantID), 10)
}

// EventStatus represents the lifecycle status of an event
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Event represents a social event whose participants get grouped into tables
type Event struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	UUID             string      `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Name             string      `gorm:"type:varchar(255);not null" json:"name"`
	Venue            string      `gorm:"type:varchar(255)" json:"venue"`
	StartsAt         time.Time   `gorm:"not null;index" json:"starts_at"`
	Status           EventStatus `gorm:"type:varchar(20);not null;default:'draft'" json:"status"`
	AutoMatchEnabled bool        `gorm:"default:true" json:"auto_match_enabled"`
	AutoMatchedAt    *time.Time  `json:"auto_matched_at,omitempty"` // Set once the sweep has matched this event
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// BeforeCreate hook to assign a UUID
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.UUID == "" {
		e.UUID = uuid.NewString()
	}
	return nil
}

// Participant represents a person who can register for events
type Participant struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DisplayName string    `gorm:"type:varchar(255);not null" json:"display_name"`
	Email       string    `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Phone       string    `gorm:"type:varchar(50)" json:"phone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PaymentStatus represents the payment state of a registration
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Registration links a participant to an event with its payment state
type Registration struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	EventID       uint          `gorm:"not null;uniqueIndex:idx_event_participant" json:"event_id"`
	ParticipantID uint          `gorm:"not null;index;uniqueIndex:idx_event_participant" json:"participant_id"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	AmountCents   int           `json:"amount_cents"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// Relationships
	Event       Event       `gorm:"foreignKey:EventID" json:"-"`
	Participant Participant `gorm:"foreignKey:ParticipantID" json:"participant,omitempty"`
}

// IsPaid returns true if the registration has been paid for
func (r *Registration) IsPaid() bool {
	return r.PaymentStatus == PaymentStatusPaid
}

// PersonalityProfile holds the trait scores produced by the assessment pipeline.
// Normalized scores are in [0,100]; the four raw similarity scores are in [-10,10].
type PersonalityProfile struct {
	ID            uint `gorm:"primaryKey" json:"id"`
	ParticipantID uint `gorm:"uniqueIndex;not null" json:"participant_id"`

	// Normalized trait scores [0,100]
	EnergyScore    float64 `gorm:"type:decimal(5,2)" json:"energy_score"`
	OpennessScore  float64 `gorm:"type:decimal(5,2)" json:"openness_score"`
	StructureScore float64 `gorm:"type:decimal(5,2)" json:"structure_score"`
	AffectScore    float64 `gorm:"type:decimal(5,2)" json:"affect_score"`
	ComfortScore   float64 `gorm:"type:decimal(5,2)" json:"comfort_score"`
	LifestyleScore float64 `gorm:"type:decimal(5,2)" json:"lifestyle_score"`

	// Raw trait scores; energy/openness/structure/affect are bounded to
	// [-10,10] and drive the similarity vector
	RawEnergy    float64 `gorm:"type:decimal(5,2)" json:"raw_energy"`
	RawOpenness  float64 `gorm:"type:decimal(5,2)" json:"raw_openness"`
	RawStructure float64 `gorm:"type:decimal(5,2)" json:"raw_structure"`
	RawAffect    float64 `gorm:"type:decimal(5,2)" json:"raw_affect"`
	RawComfort   float64 `gorm:"type:decimal(5,2)" json:"raw_comfort"`
	RawLifestyle float64 `gorm:"type:decimal(5,2)" json:"raw_lifestyle"`

	// Contextual attributes, informational only (not scored today)
	RelationshipStatus string `gorm:"type:varchar(50)" json:"relationship_status"`
	GenderMixComfort   string `gorm:"type:varchar(50)" json:"gender_mix_comfort"`
	Intent             string `gorm:"type:varchar(100)" json:"intent"`

	CompletedAt *time.Time `gorm:"index" json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Belongs to Participant
	Participant Participant `gorm:"foreignKey:ParticipantID" json:"-"`
}

// IsCompleted returns true if the assessment has been finished
func (p *PersonalityProfile) IsCompleted() bool {
	return p.CompletedAt != nil
}

// GroupStatus represents the status of a matching group
type GroupStatus string

const (
	GroupStatusActive    GroupStatus = "active"
	GroupStatusDissolved GroupStatus = "dissolved"
)

// MatchingGroup represents one formed table of participants for an event.
// Groups are deleted and recreated when automatic matching re-runs, and are
// mutated individually by manual overrides.
type MatchingGroup struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	UUID             string      `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	EventID          uint        `gorm:"not null;uniqueIndex:idx_event_group_number" json:"event_id"`
	GroupNumber      int         `gorm:"not null;uniqueIndex:idx_event_group_number" json:"group_number"` // 1-based, unique per event
	Status           GroupStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	Size             int         `json:"size"`
	AvgScore         float64     `gorm:"type:decimal(5,2)" json:"avg_score"`
	MinScore         float64     `gorm:"type:decimal(5,2)" json:"min_score"`
	ThresholdUsed    float64     `gorm:"type:decimal(5,2)" json:"threshold_used"`
	TableLabel       string      `gorm:"type:varchar(255)" json:"table_label"` // Free-text venue/table metadata
	ManuallyCreated  bool        `gorm:"default:false" json:"manually_created"`
	ManuallyModified bool        `gorm:"default:false" json:"manually_modified"`
	LastModifiedBy   string      `gorm:"type:varchar(255)" json:"last_modified_by"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`

	// Relationships
	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

// BeforeCreate hook to assign a UUID
func (g *MatchingGroup) BeforeCreate(tx *gorm.DB) error {
	if g.UUID == "" {
		g.UUID = uuid.NewString()
	}
	return nil
}

// TraitSnapshot freezes a participant's trait scores at assignment time so
// later profile edits do not retroactively change group history
type TraitSnapshot struct {
	Energy       float64 `gorm:"type:decimal(5,2)" json:"energy"`
	Openness     float64 `gorm:"type:decimal(5,2)" json:"openness"`
	Structure    float64 `gorm:"type:decimal(5,2)" json:"structure"`
	Affect       float64 `gorm:"type:decimal(5,2)" json:"affect"`
	Comfort      float64 `gorm:"type:decimal(5,2)" json:"comfort"`
	Lifestyle    float64 `gorm:"type:decimal(5,2)" json:"lifestyle"`
	RawEnergy    float64 `gorm:"type:decimal(5,2)" json:"raw_energy"`
	RawOpenness  float64 `gorm:"type:decimal(5,2)" json:"raw_openness"`
	RawStructure float64 `gorm:"type:decimal(5,2)" json:"raw_structure"`
	RawAffect    float64 `gorm:"type:decimal(5,2)" json:"raw_affect"`
}

// GroupMember is one participant's membership in a matching group
type GroupMember struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	GroupID       uint          `gorm:"not null;uniqueIndex:idx_group_participant" json:"group_id"`
	ParticipantID uint          `gorm:"not null;index;uniqueIndex:idx_group_participant" json:"participant_id"`
	Snapshot      TraitSnapshot `gorm:"embedded;embeddedPrefix:snap_" json:"snapshot"`
	PairScores    ScoreMap      `gorm:"type:jsonb" json:"pair_scores"` // other member id -> score

	// Manual-assignment provenance; empty for algorithm-assigned members
	AssignedBy      string    `gorm:"type:varchar(255)" json:"assigned_by"`
	AssignedAt      time.Time `gorm:"not null" json:"assigned_at"`
	Note            string    `gorm:"type:text" json:"note"`
	PreviousGroupID *uint     `json:"previous_group_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Relationships
	Group       MatchingGroup `gorm:"foreignKey:GroupID" json:"-"`
	Participant Participant   `gorm:"foreignKey:ParticipantID" json:"participant,omitempty"`
}

// BeforeCreate hook to stamp the assignment time
func (m *GroupMember) BeforeCreate(tx *gorm.DB) error {
	if m.AssignedAt.IsZero() {
		m.AssignedAt = time.Now()
	}
	return nil
}

// AttemptStatus represents the outcome of one automatic matching run
type AttemptStatus string

const (
	AttemptStatusMatched        AttemptStatus = "matched"
	AttemptStatusPartial        AttemptStatus = "partial"
	AttemptStatusNoParticipants AttemptStatus = "no_participants"
	AttemptStatusFailed         AttemptStatus = "failed"
)

// MatchingAttempt is one immutable log row per automatic matching run.
// Rows are append-only and never mutated or deleted by normal operation.
type MatchingAttempt struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	UUID              string        `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	EventID           uint          `gorm:"not null;uniqueIndex:idx_event_attempt_number" json:"event_id"`
	AttemptNumber     int           `gorm:"not null;uniqueIndex:idx_event_attempt_number" json:"attempt_number"` // strictly increasing per event
	Status            AttemptStatus `gorm:"type:varchar(20);not null" json:"status"`
	TotalParticipants int           `json:"total_participants"`
	MatchedCount      int           `json:"matched_count"`
	UnmatchedCount    int           `json:"unmatched_count"`
	GroupsFormed      int           `json:"groups_formed"`
	AvgScore          float64       `gorm:"type:decimal(5,2)" json:"avg_score"`
	MinThreshold      float64       `gorm:"type:decimal(5,2)" json:"min_threshold"`
	MaxThreshold      float64       `gorm:"type:decimal(5,2)" json:"max_threshold"`
	ResultPayload     JSONB         `gorm:"type:jsonb" json:"result_payload"`
	Warnings          string        `gorm:"type:text" json:"warnings"`
	TriggeredBy       string        `gorm:"type:varchar(255)" json:"triggered_by"`
	ExecutionSeconds  float64       `gorm:"type:decimal(8,3)" json:"execution_seconds"`
	CreatedAt         time.Time     `json:"created_at"`
}

// BeforeCreate hook to assign a UUID
func (a *MatchingAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	return nil
}

// SlackSettings stores the admin notification channel configuration
type SlackSettings struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BotToken     string    `gorm:"type:text" json:"bot_token"`
	AdminChannel string    `gorm:"type:varchar(255)" json:"admin_channel"`
	Enabled      bool      `gorm:"default:false" json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsActive returns true if Slack notifications are enabled and configured
func (s *SlackSettings) IsActive() bool {
	return s.Enabled && s.BotToken != "" && s.AdminChannel != ""
}

// TableName overrides for explicit table naming
func (Event) TableName() string {
	return "events"
}

func (Participant) TableName() string {
	return "participants"
}

func (Registration) TableName() string {
	return "registrations"
}

func (PersonalityProfile) TableName() string {
	return "personality_profiles"
}

func (MatchingGroup) TableName() string {
	return "matching_groups"
}

func (GroupMember) TableName() string {
	return "group_members"
}

func (MatchingAttempt) TableName() string {
	return "matching_attempts"
}

func (SlackSettings) TableName() string {
	return "slack_settings"
}
