package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"uewatch/internal/bus"
	"uewatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleEvent() domain.MatchEvent {
	return domain.MatchEvent{
		Message: domain.Message{
			Source:    "telegram",
			ChannelID: "-100123",
			MessageID: "42",
			Text:      "New UE 5.4 plugin update available!",
			Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
		Result: domain.MatchResult{
			Matched:     true,
			Version:     "5.4",
			MatchedText: "UE 5.4",
			Keywords:    []string{"update", "plugin"},
		},
		DetectedAt: time.Now(),
	}
}

func TestConsole_Notify(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Out: &buf, Logger: testLogger()})

	if err := c.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"UE PLUGIN UPDATE DETECTED!",
		"Version: 5.4",
		"Message ID: 42",
		"New UE 5.4 plugin update available!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatAlert(t *testing.T) {
	out := formatAlert(sampleEvent())
	for _, want := range []string{"Version: 5.4", "Source: telegram", "Channel: -100123", "Keywords: update, plugin"} {
		if !strings.Contains(out, want) {
			t.Errorf("alert missing %q:\n%s", want, out)
		}
	}
}

func TestPreview_Truncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	p := preview(long)
	if len([]rune(p)) != previewLen+3 {
		t.Errorf("preview length = %d", len([]rune(p)))
	}
	if !strings.HasSuffix(p, "...") {
		t.Error("expected ellipsis suffix")
	}

	if preview("short") != "short" {
		t.Error("short text should pass through")
	}
}

func TestSplitMessage_Short(t *testing.T) {
	chunks := splitMessage("short message", 100)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitMessage_PrefersNewlines(t *testing.T) {
	msg := strings.Repeat("line of text\n", 30)
	chunks := splitMessage(msg, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk %d exceeds max length: %d", i, len(c))
		}
	}
	if !strings.HasSuffix(chunks[0], "\n") {
		t.Error("expected first chunk to end on a newline boundary")
	}
}

type flakySink struct {
	name  string
	calls chan struct{}
	err   error
}

func (f *flakySink) Name() string { return f.name }
func (f *flakySink) Notify(context.Context, domain.MatchEvent) error {
	f.calls <- struct{}{}
	return f.err
}

func TestRegister_FailingSinkDoesNotBlockOthers(t *testing.T) {
	b := bus.New(1, testLogger())
	defer b.Close()

	bad := &flakySink{name: "bad", calls: make(chan struct{}, 1), err: errors.New("boom")}
	good := &flakySink{name: "good", calls: make(chan struct{}, 1)}
	Register(b, bad, testLogger())
	Register(b, good, testLogger())

	b.EmitMatch(sampleEvent())

	for _, sink := range []*flakySink{bad, good} {
		select {
		case <-sink.calls:
		case <-time.After(time.Second):
			t.Fatalf("sink %s was not invoked", sink.name)
		}
	}
}
