// Package bus provides the in-process pipeline between sources, the
// monitor loop, and notification sinks.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"uewatch/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based message bus. Sources publish
// observed messages; the monitor subscribes to them and emits match
// events, which fan out to registered sinks.
type InMemoryBus struct {
	inbound chan domain.Message
	sinks   map[string]func(domain.MatchEvent)
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound: make(chan domain.Message, bufferSize),
		sinks:   make(map[string]func(domain.MatchEvent)),
		logger:  logger,
	}
}

// Publish delivers a message to the monitor. Blocks up to 10 seconds
// if the bus is full instead of dropping.
func (b *InMemoryBus) Publish(msg domain.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.inbound <- msg:
	default:
		b.logger.Warn("inbound bus full, waiting...", "source", msg.Source, "channel", msg.ChannelID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- msg:
			b.logger.Info("message delivered after wait", "source", msg.Source)
		case <-timer.C:
			b.logger.Error("message dropped: bus full for 10s",
				"source", msg.Source,
				"channel", msg.ChannelID,
				"message_id", msg.MessageID,
			)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.Message {
	return b.inbound
}

// EmitMatch fans a match event out to every registered sink. Sinks run
// inline; they are expected to hand off slow work themselves.
func (b *InMemoryBus) EmitMatch(ev domain.MatchEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.sinks) == 0 {
		b.logger.Warn("match event with no sinks registered",
			"source", ev.Message.Source,
			"version", ev.Result.Version,
		)
		return
	}
	for _, handler := range b.sinks {
		handler(ev)
	}
}

// OnMatch registers a sink handler. Registering the same sink name
// twice replaces the previous handler.
func (b *InMemoryBus) OnMatch(sinkName string, handler func(domain.MatchEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[sinkName] = handler
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
