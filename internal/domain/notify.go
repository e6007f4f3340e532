package domain

import "context"

// Notifier delivers a match event to one sink (console, Telegram chat,
// Slack channel, WebSocket clients). A failing notifier must not block
// or fail the others.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev MatchEvent) error
}
