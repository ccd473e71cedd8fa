package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/tablemix/tablemix/internal/database"
	"github.com/tablemix/tablemix/internal/matching"
)

// SlackNotifier posts matching outcomes to the configured admin channel
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier creates a notifier for the given bot token and channel
func NewSlackNotifier(botToken, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(botToken),
		channel: channel,
	}
}

// FromSettings builds a notifier from the persisted Slack settings, falling
// back to the no-op notifier when Slack is disabled or unconfigured
func FromSettings(settings *database.SlackSettings) Notifier {
	if settings == nil || !settings.IsActive() {
		return NoopNotifier{}
	}
	return NewSlackNotifier(settings.BotToken, settings.AdminChannel)
}

// MatchingCompleted posts a run summary for an event
func (n *SlackNotifier) MatchingCompleted(event *database.Event, summary matching.Summary) {
	text := fmt.Sprintf(":white_check_mark: Matching completed for *%s*: %d groups, %d matched, %d unmatched (avg score %.2f)",
		event.Name, summary.GroupCount, summary.MatchedCount, summary.UnmatchedCount, summary.AvgScore)
	n.post(text)
}

// MatchingFailed posts a failure notice for an event
func (n *SlackNotifier) MatchingFailed(event *database.Event, err error) {
	text := fmt.Sprintf(":red_circle: Matching failed for *%s*: %v", event.Name, err)
	n.post(text)
}

func (n *SlackNotifier) post(text string) {
	_, _, err := n.client.PostMessage(
		n.channel,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		log.Printf("Failed to post Slack notification: %v", err)
	}
}
