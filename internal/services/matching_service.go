package services

import (
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tablemix/tablemix/internal/database"
	"github.com/tablemix/tablemix/internal/matching"
)

// MatchingService composes eligibility selection, group formation, statistics
// and persistence into the two public operations: run-matching and preview.
// Writes for one event are serialized through a per-event lock so a manual
// re-run cannot interleave with the scheduled sweep. The lock is process-local;
// multi-instance deployments need a store-level advisory lock instead.
type MatchingService struct {
	db          *gorm.DB
	eligibility *EligibilityService
	results     *ResultService

	mu         sync.Mutex
	eventLocks map[uint]*sync.Mutex
}

// NewMatchingService creates a new matching orchestrator
func NewMatchingService(db *gorm.DB, eligibility *EligibilityService, results *ResultService) *MatchingService {
	return &MatchingService{
		db:          db,
		eligibility: eligibility,
		results:     results,
		eventLocks:  make(map[uint]*sync.Mutex),
	}
}

// MatchingRunResult is the outcome of one persisted matching run
type MatchingRunResult struct {
	Attempt   *database.MatchingAttempt `json:"attempt"`
	Groups    []database.MatchingGroup  `json:"groups"`
	Summary   matching.Summary          `json:"summary"`
	Formation *matching.FormationResult `json:"formation"`
}

// RunMatching executes the full pipeline for an event: eligibility, pairwise
// scores, multi-pass formation, summary, then replaces the persisted result
// set and appends an attempt row with the wall-clock execution time. The
// attempt is logged even for the not-enough-participants case, which is a
// successful empty result, not an error.
func (s *MatchingService) RunMatching(eventID uint, triggeredBy string) (*MatchingRunResult, error) {
	lock := s.lockFor(eventID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()

	result, summary, profiles, err := s.compute(eventID)
	if err != nil {
		s.recordFailure(eventID, triggeredBy, time.Since(start).Seconds())
		return nil, err
	}

	groups, err := s.results.ReplaceResults(eventID, result, profiles)
	if err != nil {
		s.recordFailure(eventID, triggeredBy, time.Since(start).Seconds())
		return nil, err
	}

	attempt, err := s.results.RecordAttempt(eventID, result, summary, attemptStatusOf(result), triggeredBy, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	log.Printf("Matching run for event %d: %d groups, %d matched, %d unmatched (%.2fs, attempt #%d)",
		eventID, len(result.Groups), result.MatchedCount(), len(result.Unmatched),
		attempt.ExecutionSeconds, attempt.AttemptNumber)

	return &MatchingRunResult{
		Attempt:   attempt,
		Groups:    groups,
		Summary:   summary,
		Formation: result,
	}, nil
}

// PreviewMatching runs the same computation as RunMatching but persists
// nothing and logs no attempt
func (s *MatchingService) PreviewMatching(eventID uint) (*matching.FormationResult, matching.Summary, error) {
	result, summary, _, err := s.compute(eventID)
	if err != nil {
		return nil, matching.Summary{}, err
	}
	return result, summary, nil
}

// GetGroups returns the current persisted groups for an event
func (s *MatchingService) GetGroups(eventID uint) ([]database.MatchingGroup, error) {
	return s.results.GetGroups(eventID)
}

// GetParticipantGroup returns one participant's group and score view
func (s *MatchingService) GetParticipantGroup(eventID, participantID uint) (*ParticipantGroupView, error) {
	return s.results.GetParticipantGroup(eventID, participantID)
}

// GetAttemptHistory returns the attempt log for an event, newest first
func (s *MatchingService) GetAttemptHistory(eventID uint) ([]database.MatchingAttempt, error) {
	return s.results.GetAttemptHistory(eventID)
}

// compute loads eligibility and runs the pure formation pipeline
func (s *MatchingService) compute(eventID uint) (*matching.FormationResult, matching.Summary, map[uint]database.PersonalityProfile, error) {
	settings, err := database.GetOrCreateMatchingSettings(s.db)
	if err != nil {
		return nil, matching.Summary{}, nil, err
	}

	eligible, err := s.eligibility.GetEligible(eventID)
	if err != nil {
		return nil, matching.Summary{}, nil, err
	}

	candidates := make([]matching.Candidate, 0, len(eligible))
	profiles := make(map[uint]database.PersonalityProfile, len(eligible))
	for _, e := range eligible {
		candidates = append(candidates, e.Candidate())
		profiles[e.ParticipantID] = e.Profile
	}

	result := matching.FormGroups(candidates, formationConfig(settings))
	summary := matching.Summarize(result.Groups, result.TotalParticipants, len(result.Unmatched))
	return result, summary, profiles, nil
}

// recordFailure best-effort logs a failed attempt; the original error wins
func (s *MatchingService) recordFailure(eventID uint, triggeredBy string, elapsedSeconds float64) {
	_, err := s.results.RecordAttempt(eventID, nil, matching.Summary{}, database.AttemptStatusFailed, triggeredBy, elapsedSeconds)
	if err != nil {
		log.Printf("Failed to record failed matching attempt for event %d: %v", eventID, err)
	}
}

// lockFor returns the per-event mutex, creating it on first use
func (s *MatchingService) lockFor(eventID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.eventLocks[eventID]
	if !ok {
		lock = &sync.Mutex{}
		s.eventLocks[eventID] = lock
	}
	return lock
}

// formationConfig maps the persisted settings row onto the algorithm config
func formationConfig(settings *database.MatchingSettings) matching.FormationConfig {
	cfg := matching.FormationConfig{
		Thresholds:   []float64(settings.Thresholds),
		SeedAttempts: settings.SeedAttempts,
		MinGroupSize: settings.MinGroupSize,
		MaxGroupSize: settings.MaxGroupSize,
	}
	if len(cfg.Thresholds) == 0 {
		cfg = matching.DefaultFormationConfig()
	}
	return cfg
}

// attemptStatusOf derives the attempt outcome from a formation result
func attemptStatusOf(result *matching.FormationResult) database.AttemptStatus {
	switch {
	case len(result.Groups) == 0:
		return database.AttemptStatusNoParticipants
	case len(result.Unmatched) > 0:
		return database.AttemptStatusPartial
	default:
		return database.AttemptStatusMatched
	}
}
