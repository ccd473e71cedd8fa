package notify

import (
	"github.com/tablemix/tablemix/internal/database"
	"github.com/tablemix/tablemix/internal/matching"
)

// Notifier is the administrative notification channel. The scheduled sweep
// forwards per-event outcomes here so operators see failures without tailing
// logs.
type Notifier interface {
	MatchingCompleted(event *database.Event, summary matching.Summary)
	MatchingFailed(event *database.Event, err error)
}

// NoopNotifier discards all notifications; used when Slack is disabled
type NoopNotifier struct{}

// MatchingCompleted implements Notifier
func (NoopNotifier) MatchingCompleted(event *database.Event, summary matching.Summary) {}

// MatchingFailed implements Notifier
func (NoopNotifier) MatchingFailed(event *database.Event, err error) {}
