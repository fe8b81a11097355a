package main

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"
)

// Notifier posts run summaries to a Slack channel. A nil Notifier (Slack not
// configured) is safe to call; messages are logged and dropped.
type Notifier struct {
	api     *slack.Client
	channel string
}

func NewNotifier(cfg Config) *Notifier {
	if !cfg.SlackConfigured() {
		return nil
	}
	return &Notifier{
		api:     slack.New(cfg.SlackBotToken),
		channel: cfg.SlackChannelID,
	}
}

func (n *Notifier) Post(message string) {
	if n == nil {
		log.Printf("slack not configured, dropping notification: %s", message)
		return
	}
	if _, _, err := n.api.PostMessage(n.channel, slack.MsgOptionText(message, false)); err != nil {
		log.Printf("slack post error: %v", err)
	}
}

// PostRunSummary formats and posts a completed pipeline stage.
func (n *Notifier) PostRunSummary(client, stage string, rows int, summary CostSummary) {
	n.Post(fmt.Sprintf("%s complete for %s: %d rows, %d calls, $%.4f (%d in / %d out tokens)",
		stage, client, rows, summary.TotalCalls, summary.TotalCostUSD,
		summary.TotalInputTokens, summary.TotalOutputTokens))
}
