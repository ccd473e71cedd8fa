package jobs

import (
	"log"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/tablemix/tablemix/internal/database"
	"github.com/tablemix/tablemix/internal/notify"
	"github.com/tablemix/tablemix/internal/services"
)

// AutoMatchJob periodically runs automatic matching for published events
// nearing their start time. One sweep runs at a time per process: overlapping
// ticks are skipped with a log line, not queued. A persisted auto-matched
// timestamp keeps the sweep idempotent across its own retries.
type AutoMatchJob struct {
	db       *gorm.DB
	matcher  *services.MatchingService
	notifier notify.Notifier
	running  atomic.Bool
}

// NewAutoMatchJob creates a new auto-match sweep job
func NewAutoMatchJob(db *gorm.DB, matcher *services.MatchingService, notifier notify.Notifier) *AutoMatchJob {
	return &AutoMatchJob{
		db:       db,
		matcher:  matcher,
		notifier: notifier,
	}
}

// Run executes one sweep iteration and returns the number of events matched.
// Per-event failures are logged and forwarded to the notifier without
// stopping the rest of the sweep.
func (j *AutoMatchJob) Run() (int, error) {
	if !j.running.CompareAndSwap(false, true) {
		log.Println("Auto-match sweep already running, skipping this tick")
		return 0, nil
	}
	defer j.running.Store(false)

	settings, err := database.GetOrCreateMatchingSettings(j.db)
	if err != nil {
		return 0, err
	}
	if !settings.SweepEnabled {
		log.Println("Auto-match sweep is disabled, skipping")
		return 0, nil
	}

	events, err := j.dueEvents(settings.AutoMatchLeadHours)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	matched := 0
	for i := range events {
		event := &events[i]

		result, err := j.matcher.RunMatching(event.ID, "auto-sweep")
		if err != nil {
			log.Printf("Auto-match failed for event %d (%s): %v", event.ID, event.Name, err)
			j.notifier.MatchingFailed(event, err)
			continue
		}

		now := time.Now()
		if err := j.db.Model(event).Update("auto_matched_at", &now).Error; err != nil {
			log.Printf("Failed to stamp auto-matched flag for event %d: %v", event.ID, err)
			continue
		}

		j.notifier.MatchingCompleted(event, result.Summary)
		matched++
	}

	return matched, nil
}

// dueEvents selects published events with auto-matching enabled that start
// within the lead window and have not been auto-matched yet
func (j *AutoMatchJob) dueEvents(leadHours int) ([]database.Event, error) {
	now := time.Now()
	horizon := now.Add(time.Duration(leadHours) * time.Hour)

	var events []database.Event
	err := j.db.Where(
		"status = ? AND auto_match_enabled = ? AND auto_matched_at IS NULL AND starts_at > ? AND starts_at <= ?",
		database.EventStatusPublished, true, now, horizon,
	).Order("starts_at ASC").Find(&events).Error
	return events, err
}

// Start begins the periodic sweep loop
func (j *AutoMatchJob) Start(stop <-chan struct{}) {
	settings, err := database.GetOrCreateMatchingSettings(j.db)
	if err != nil {
		log.Printf("Failed to get matching settings, using default sweep interval: %v", err)
		settings = database.NewDefaultMatchingSettings()
	}

	interval := time.Duration(settings.SweepIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			matched, err := j.Run()
			if err != nil {
				log.Printf("Auto-match sweep error: %v", err)
			} else if matched > 0 {
				log.Printf("Auto-match sweep: matched %d events", matched)
			}

			// Refresh interval from settings (in case it changed)
			newSettings, err := database.GetOrCreateMatchingSettings(j.db)
			if err == nil && newSettings.SweepIntervalMinutes != settings.SweepIntervalMinutes {
				settings = newSettings
				interval = time.Duration(settings.SweepIntervalMinutes) * time.Minute
				ticker.Reset(interval)
				log.Printf("Auto-match sweep interval updated to %d minutes", settings.SweepIntervalMinutes)
			}

		case <-stop:
			log.Println("Auto-match sweep stopped")
			return
		}
	}
}
