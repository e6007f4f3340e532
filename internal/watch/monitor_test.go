package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"uewatch/internal/bus"
	"uewatch/internal/classify"
	"uewatch/internal/domain"
	"uewatch/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type harness struct {
	bus     *bus.InMemoryBus
	store   *store.SQLiteStore
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	matches []domain.MatchEvent
}

func newHarness(t *testing.T, rules classify.Rules) *harness {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	cls, err := classify.New(rules)
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{
		bus:  bus.New(10, testLogger()),
		done: make(chan struct{}),
	}
	h.store = st
	h.bus.OnMatch("capture", func(ev domain.MatchEvent) {
		h.mu.Lock()
		h.matches = append(h.matches, ev)
		h.mu.Unlock()
	})

	m := New(Config{
		Bus:        h.bus,
		Store:      st,
		Classifier: cls,
		Logger:     testLogger(),
		Workers:    2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		m.Run(ctx)
		close(h.done)
	}()
	t.Cleanup(func() {
		cancel()
		h.bus.Close()
		<-h.done
	})
	return h
}

func (h *harness) waitMatches(t *testing.T, n int) []domain.MatchEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		got := len(h.matches)
		h.mu.Unlock()
		if got >= n {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.MatchEvent(nil), h.matches...)
}

func TestMonitor_MatchFlow(t *testing.T) {
	h := newHarness(t, classify.Rules{})

	h.bus.Publish(domain.Message{
		Source: "telegram", ChannelID: "c", MessageID: "1",
		Text: "New UE 5.4 plugin update available!",
	})
	h.bus.Publish(domain.Message{
		Source: "telegram", ChannelID: "c", MessageID: "2",
		Text: "Random text about updates",
	})

	matches := h.waitMatches(t, 1)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Result.Version != "5.4" {
		t.Errorf("version = %s", matches[0].Result.Version)
	}

	// The match is persisted.
	stored, err := h.store.ListMatches(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Version != "5.4" {
		t.Errorf("stored matches = %+v", stored)
	}
}

func TestMonitor_DuplicateMessagesClassifiedOnce(t *testing.T) {
	h := newHarness(t, classify.Rules{})

	msg := domain.Message{
		Source: "telegram", ChannelID: "c", MessageID: "7",
		Text: "Updated to Unreal Engine 5.3",
	}
	h.bus.Publish(msg)
	h.bus.Publish(msg)
	h.bus.Publish(msg)

	matches := h.waitMatches(t, 1)
	// Give the duplicates a moment to (not) arrive.
	time.Sleep(50 * time.Millisecond)
	matches = h.waitMatches(t, 1)
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match for duplicate message, got %d", len(matches))
	}
}

func TestMonitor_MutedMatchRecordedNotNotified(t *testing.T) {
	h := newHarness(t, classify.Rules{Mute: []string{`\brepost\b`}})

	h.bus.Publish(domain.Message{
		Source: "telegram", ChannelID: "c", MessageID: "1",
		Text: "REPOST: UE 5.4 plugin update",
	})
	h.bus.Publish(domain.Message{
		Source: "telegram", ChannelID: "c", MessageID: "2",
		Text: "UE 5.5 plugin released",
	})

	matches := h.waitMatches(t, 1)
	if len(matches) != 1 || matches[0].Result.Version != "5.5" {
		t.Fatalf("expected only the unmuted match, got %+v", matches)
	}

	// Both matches are in history.
	stored, err := h.store.ListMatches(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Errorf("expected 2 stored matches, got %d", len(stored))
	}
}

func TestMonitor_StopsWhenBusClosed(t *testing.T) {
	h := newHarness(t, classify.Rules{})
	h.cancel()
	h.bus.Close()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after bus close")
	}
}

func TestMonitor_DrainsBufferedMessagesOnShutdown(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	cls, err := classify.New(classify.Rules{})
	if err != nil {
		t.Fatal(err)
	}

	const buffered = 20
	b := bus.New(32, testLogger())
	for i := 0; i < buffered; i++ {
		b.Publish(domain.Message{
			Source: "telegram", ChannelID: "c", MessageID: strconv.Itoa(i),
			Text: "New UE 5.4 plugin update available!",
		})
	}

	m := New(Config{
		Bus:        b,
		Store:      st,
		Classifier: cls,
		Logger:     testLogger(),
		Workers:    2,
	})

	// Shutdown ordering: the run context is cancelled before the
	// workers get to the buffered messages.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	b.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not drain and stop")
	}

	count, err := st.CountMatches(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != buffered {
		t.Fatalf("recorded %d of %d buffered matches", count, buffered)
	}
}
