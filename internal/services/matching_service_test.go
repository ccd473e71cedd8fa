package services

import (
	"strings"
	"testing"

	"github.com/tablemix/tablemix/internal/database"
	"github.com/tablemix/tablemix/internal/matching"
)

func TestRunMatching(t *testing.T) {
	db := setupTestDB(t)
	service := NewMatchingService(db, NewEligibilityService(db), NewResultService(db))
	event := createTestEvent(t, db)

	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		createEligibleParticipant(t, db, event.ID, name, 5, 5, 5, 5, 50, 50)
	}

	run, err := service.RunMatching(event.ID, "admin")
	if err != nil {
		t.Fatalf("RunMatching failed: %v", err)
	}

	if len(run.Groups) != 1 {
		t.Fatalf("expected 1 persisted group, got %d", len(run.Groups))
	}
	if run.Attempt.Status != database.AttemptStatusMatched {
		t.Errorf("expected matched status, got %q", run.Attempt.Status)
	}
	if run.Attempt.AttemptNumber != 1 {
		t.Errorf("expected first attempt, got %d", run.Attempt.AttemptNumber)
	}
	if run.Attempt.TriggeredBy != "admin" {
		t.Errorf("expected trigger admin, got %q", run.Attempt.TriggeredBy)
	}
	if run.Summary.MatchedCount != 4 || run.Summary.UnmatchedCount != 0 {
		t.Errorf("unexpected summary: %+v", run.Summary)
	}

	groups, err := service.GetGroups(event.ID)
	if err != nil {
		t.Fatalf("GetGroups failed: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Members) != 4 {
		t.Fatalf("expected persisted group of 4, got %+v", groups)
	}
}

func TestRunMatching_RerunReplacesGroups(t *testing.T) {
	db := setupTestDB(t)
	service := NewMatchingService(db, NewEligibilityService(db), NewResultService(db))
	event := createTestEvent(t, db)

	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		createEligibleParticipant(t, db, event.ID, name, 5, 5, 5, 5, 50, 50)
	}

	if _, err := service.RunMatching(event.ID, "admin"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := service.RunMatching(event.ID, "admin")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if second.Attempt.AttemptNumber != 2 {
		t.Errorf("expected attempt 2, got %d", second.Attempt.AttemptNumber)
	}

	var groupCount int64
	db.Model(&database.MatchingGroup{}).Where("event_id = ?", event.ID).Count(&groupCount)
	if groupCount != 1 {
		t.Errorf("expected re-run to replace groups, got %d", groupCount)
	}

	history, err := service.GetAttemptHistory(event.ID)
	if err != nil {
		t.Fatalf("GetAttemptHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected both attempts retained, got %d", len(history))
	}
}

func TestRunMatching_TooFewParticipants(t *testing.T) {
	db := setupTestDB(t)
	service := NewMatchingService(db, NewEligibilityService(db), NewResultService(db))
	event := createTestEvent(t, db)

	createEligibleParticipant(t, db, event.ID, "alice", 5, 5, 5, 5, 50, 50)
	createEligibleParticipant(t, db, event.ID, "bob", 4, 5, 5, 4, 48, 55)

	run, err := service.RunMatching(event.ID, "admin")
	if err != nil {
		t.Fatalf("RunMatching failed: %v", err)
	}

	if run.Attempt.Status != database.AttemptStatusNoParticipants {
		t.Errorf("expected no_participants status, got %q", run.Attempt.Status)
	}
	if run.Attempt.TotalParticipants != 2 || run.Attempt.MatchedCount != 0 {
		t.Errorf("unexpected attempt counts: %+v", run.Attempt)
	}
	if !strings.Contains(run.Attempt.Warnings, matching.NotEnoughParticipantsWarning) {
		t.Errorf("expected warning %q, got %q", matching.NotEnoughParticipantsWarning, run.Attempt.Warnings)
	}
	if len(run.Groups) != 0 {
		t.Errorf("expected no groups, got %d", len(run.Groups))
	}
}

func TestRunMatching_EventNotFound(t *testing.T) {
	db := setupTestDB(t)
	service := NewMatchingService(db, NewEligibilityService(db), NewResultService(db))

	_, err := service.RunMatching(999, "admin")
	if !matching.IsKind(err, matching.KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}

	// The failure itself is still logged to the attempt history
	var attempt database.MatchingAttempt
	if err := db.Where("event_id = ?", 999).First(&attempt).Error; err != nil {
		t.Fatalf("expected failed attempt row: %v", err)
	}
	if attempt.Status != database.AttemptStatusFailed {
		t.Errorf("expected failed status, got %q", attempt.Status)
	}
}

func TestPreviewMatching_PersistsNothing(t *testing.T) {
	db := setupTestDB(t)
	service := NewMatchingService(db, NewEligibilityService(db), NewResultService(db))
	event := createTestEvent(t, db)

	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		createEligibleParticipant(t, db, event.ID, name, 5, 5, 5, 5, 50, 50)
	}

	result, summary, err := service.PreviewMatching(event.ID)
	if err != nil {
		t.Fatalf("PreviewMatching failed: %v", err)
	}
	if len(result.Groups) != 1 || summary.MatchedCount != 4 {
		t.Errorf("unexpected preview outcome: %d groups, summary %+v", len(result.Groups), summary)
	}

	var groupCount, attemptCount int64
	db.Model(&database.MatchingGroup{}).Count(&groupCount)
	db.Model(&database.MatchingAttempt{}).Count(&attemptCount)
	if groupCount != 0 || attemptCount != 0 {
		t.Errorf("expected no persisted state after preview, got %d groups and %d attempts", groupCount, attemptCount)
	}
}

func TestRunMatching_UsesConfiguredSettings(t *testing.T) {
	db := setupTestDB(t)
	service := NewMatchingService(db, NewEligibilityService(db), NewResultService(db))
	event := createTestEvent(t, db)

	// Max group size of 3 forces the four compatible profiles apart
	settings, err := database.GetOrCreateMatchingSettings(db)
	if err != nil {
		t.Fatalf("Failed to get settings: %v", err)
	}
	settings.MaxGroupSize = 3
	if err := database.UpdateMatchingSettings(db, settings); err != nil {
		t.Fatalf("Failed to update settings: %v", err)
	}

	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		createEligibleParticipant(t, db, event.ID, name, 5, 5, 5, 5, 50, 50)
	}

	run, err := service.RunMatching(event.ID, "admin")
	if err != nil {
		t.Fatalf("RunMatching failed: %v", err)
	}
	if len(run.Groups) != 1 || run.Groups[0].Size != 3 {
		t.Fatalf("expected one group capped at 3, got %+v", run.Groups)
	}
	if run.Attempt.Status != database.AttemptStatusPartial {
		t.Errorf("expected partial status with one leftover, got %q", run.Attempt.Status)
	}
	if run.Attempt.UnmatchedCount != 1 {
		t.Errorf("expected 1 unmatched, got %d", run.Attempt.UnmatchedCount)
	}
}
