package domain

import "context"

// Source is a watched feed of messages (Telegram channel, Discord
// channel, rendered web page). Start blocks until ctx is cancelled or
// the source fails.
type Source interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}

// MessageBus moves messages from sources to the monitor and match
// events from the monitor to notifiers.
type MessageBus interface {
	Publish(msg Message)
	Subscribe() <-chan Message
	EmitMatch(ev MatchEvent)
	OnMatch(sinkName string, handler func(MatchEvent))
}
