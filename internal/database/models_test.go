package database

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&Event{},
		&Participant{},
		&Registration{},
		&PersonalityProfile{},
		&MatchingGroup{},
		&GroupMember{},
		&MatchingAttempt{},
		&MatchingSettings{},
		&SlackSettings{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

func TestScoreMap(t *testing.T) {
	m := ScoreMap{}
	m.Set(42, 87.5)
	m.Set(7, 63.25)

	if score, ok := m.Get(42); !ok || score != 87.5 {
		t.Errorf("expected score 87.5 for participant 42, got %v (%v)", score, ok)
	}
	if _, ok := m.Get(99); ok {
		t.Error("expected no score for unknown participant")
	}

	ids := m.ParticipantIDs()
	if len(ids) != 2 {
		t.Errorf("expected 2 participant IDs, got %d", len(ids))
	}

	m.Remove(42)
	if _, ok := m.Get(42); ok {
		t.Error("expected participant 42 removed")
	}
}

func TestScoreMap_RoundTrip(t *testing.T) {
	db := setupTestDB(t)

	group := MatchingGroup{EventID: 1, GroupNumber: 1, Status: GroupStatusActive}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}

	scores := ScoreMap{}
	scores.Set(2, 74.5)
	scores.Set(3, 61.33)
	member := GroupMember{GroupID: group.ID, ParticipantID: 1, PairScores: scores}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}

	var loaded GroupMember
	if err := db.First(&loaded, member.ID).Error; err != nil {
		t.Fatalf("Failed to load member: %v", err)
	}
	if score, ok := loaded.PairScores.Get(2); !ok || score != 74.5 {
		t.Errorf("expected stored score 74.5, got %v (%v)", score, ok)
	}
	if score, ok := loaded.PairScores.Get(3); !ok || score != 61.33 {
		t.Errorf("expected stored score 61.33, got %v (%v)", score, ok)
	}
}

func TestEventBeforeCreate_AssignsUUID(t *testing.T) {
	db := setupTestDB(t)

	event := Event{Name: "Friday Dinner", StartsAt: time.Now().Add(48 * time.Hour), Status: EventStatusDraft}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}
	if event.UUID == "" {
		t.Error("expected UUID to be assigned on create")
	}
}

func TestGroupMemberBeforeCreate_StampsAssignedAt(t *testing.T) {
	db := setupTestDB(t)

	group := MatchingGroup{EventID: 1, GroupNumber: 1, Status: GroupStatusActive}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}

	member := GroupMember{GroupID: group.ID, ParticipantID: 1, PairScores: ScoreMap{}}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("Failed to create member: %v", err)
	}
	if member.AssignedAt.IsZero() {
		t.Error("expected AssignedAt to be stamped on create")
	}
}

func TestRegistrationIsPaid(t *testing.T) {
	paid := Registration{PaymentStatus: PaymentStatusPaid}
	pending := Registration{PaymentStatus: PaymentStatusPending}

	if !paid.IsPaid() {
		t.Error("expected paid registration to report paid")
	}
	if pending.IsPaid() {
		t.Error("expected pending registration to report unpaid")
	}
}

func TestPersonalityProfileIsCompleted(t *testing.T) {
	now := time.Now()
	completed := PersonalityProfile{CompletedAt: &now}
	incomplete := PersonalityProfile{}

	if !completed.IsCompleted() {
		t.Error("expected completed profile to report completed")
	}
	if incomplete.IsCompleted() {
		t.Error("expected fresh profile to report incomplete")
	}
}

func TestSlackSettingsIsActive(t *testing.T) {
	active := SlackSettings{Enabled: true, BotToken: "xoxb-test", AdminChannel: "#matching"}
	if !active.IsActive() {
		t.Error("expected configured settings to be active")
	}

	disabled := SlackSettings{Enabled: false, BotToken: "xoxb-test", AdminChannel: "#matching"}
	if disabled.IsActive() {
		t.Error("expected disabled settings to be inactive")
	}

	missingToken := SlackSettings{Enabled: true, AdminChannel: "#matching"}
	if missingToken.IsActive() {
		t.Error("expected settings without a token to be inactive")
	}
}
