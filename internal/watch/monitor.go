// Package watch runs the monitor loop: it drains the message bus,
// deduplicates against the store, classifies each new message, and
// turns accepted messages into match events and downloads.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"uewatch/internal/classify"
	"uewatch/internal/domain"
	"uewatch/internal/download"
	"uewatch/internal/metrics"
)

const (
	pruneInterval = time.Hour

	// drainOpTimeout bounds store writes for messages processed after
	// the run context is already cancelled.
	drainOpTimeout = 5 * time.Second
)

// Monitor consumes messages from the bus and emits match events.
type Monitor struct {
	bus        domain.MessageBus
	store      domain.Store
	classifier *classify.Classifier
	downloader *download.Downloader // nil = downloads disabled
	logger     *slog.Logger
	workers    int
	retention  time.Duration
}

type Config struct {
	Bus        domain.MessageBus
	Store      domain.Store
	Classifier *classify.Classifier
	Downloader *download.Downloader
	Logger     *slog.Logger
	Workers    int
	Retention  time.Duration // how long seen-message dedup entries are kept
}

func New(cfg Config) *Monitor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	return &Monitor{
		bus:        cfg.Bus,
		store:      cfg.Store,
		classifier: cfg.Classifier,
		downloader: cfg.Downloader,
		logger:     cfg.Logger,
		workers:    cfg.Workers,
		retention:  cfg.Retention,
	}
}

// Run processes messages with a fixed pool of workers and blocks until
// the bus is closed. Cancelling ctx only stops the prune loop: workers
// keep draining messages already buffered on the bus, so a post
// delivered before shutdown is never dropped.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("monitor started", "workers", m.workers)

	go m.pruneLoop(ctx)

	var wg sync.WaitGroup
	sub := m.bus.Subscribe()
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range sub {
				m.process(ctx, msg)
			}
		}()
	}
	wg.Wait()
	m.logger.Info("monitor stopped")
}

func (m *Monitor) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.store.PruneSeen(ctx, m.retention); err != nil {
				m.logger.Error("prune failed", "err", err)
			}
		}
	}
}

func (m *Monitor) process(ctx context.Context, msg domain.Message) {
	// During shutdown the run context is already cancelled, but the
	// message is still owed its store writes: the source has long
	// acknowledged it upstream and it will never be redelivered.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), drainOpTimeout)
		defer cancel()
	}

	metrics.MessagesScanned(msg.Source).Inc()

	first, err := m.store.MarkSeen(ctx, msg.Source, msg.ChannelID, msg.MessageID)
	if err != nil {
		m.logger.Error("dedup check failed", "message_id", msg.MessageID, "err", err)
		return
	}
	if !first {
		return
	}

	start := time.Now()
	res := m.classifier.Classify(msg.Text)
	metrics.ClassifyDuration().Observe(time.Since(start).Seconds())

	if !res.Matched {
		return
	}

	m.logger.Info("update post matched",
		"source", msg.Source,
		"channel", msg.ChannelID,
		"message_id", msg.MessageID,
		"version", res.Version,
	)
	metrics.Matches(msg.Source).Inc()

	ev := domain.MatchEvent{Message: msg, Result: res, DetectedAt: time.Now()}

	matchID, err := m.store.RecordMatch(ctx, domain.Match{
		Source:      msg.Source,
		ChannelID:   msg.ChannelID,
		MessageID:   msg.MessageID,
		Version:     res.Version,
		MatchedText: res.MatchedText,
		MessageText: msg.Text,
		DetectedAt:  ev.DetectedAt,
	})
	if err != nil {
		m.logger.Error("cannot record match", "message_id", msg.MessageID, "err", err)
		// Still notify; losing the history row is not a reason to stay silent.
	}

	if m.classifier.Muted(msg.Text) {
		m.logger.Info("match muted by rules", "message_id", msg.MessageID)
		return
	}

	m.bus.EmitMatch(ev)

	if m.downloader != nil && len(msg.Attachments) > 0 {
		m.downloader.Save(ctx, matchID, ev)
	}
}
