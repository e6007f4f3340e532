package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"uewatch/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "uewatch.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMarkSeen_FirstAndDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.MarkSeen(ctx, "telegram", "chan1", "42")
	if err != nil {
		t.Fatal(err)
	}
	if !first {
		t.Error("first observation should report first=true")
	}

	again, err := s.MarkSeen(ctx, "telegram", "chan1", "42")
	if err != nil {
		t.Fatal(err)
	}
	if again {
		t.Error("duplicate observation should report first=false")
	}

	// Same message ID on a different channel is a distinct message.
	other, err := s.MarkSeen(ctx, "telegram", "chan2", "42")
	if err != nil {
		t.Fatal(err)
	}
	if !other {
		t.Error("same ID on another channel should be first=true")
	}
}

func TestRecordAndListMatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.RecordMatch(ctx, domain.Match{
		Source:      "telegram",
		ChannelID:   "chan1",
		MessageID:   "42",
		Version:     "5.4",
		MatchedText: "UE 5.4",
		MessageText: "New UE 5.4 plugin update available!",
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Error("expected non-zero match ID")
	}

	if _, err := s.RecordMatch(ctx, domain.Match{
		Source: "discord", ChannelID: "c2", MessageID: "7", Version: "5.3",
	}); err != nil {
		t.Fatal(err)
	}

	matches, err := s.ListMatches(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	// Newest first.
	if matches[0].Version != "5.3" {
		t.Errorf("expected newest match first, got version %s", matches[0].Version)
	}

	n, err := s.CountMatches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestListMatches_Limit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.RecordMatch(ctx, domain.Match{
			Source: "telegram", ChannelID: "c", MessageID: string(rune('a' + i)), Version: "5.4",
		}); err != nil {
			t.Fatal(err)
		}
	}
	matches, err := s.ListMatches(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 {
		t.Errorf("expected 3 matches, got %d", len(matches))
	}
}

func TestRecordDownload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	matchID, err := s.RecordMatch(ctx, domain.Match{
		Source: "telegram", ChannelID: "c", MessageID: "1", Version: "5.4",
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.RecordDownload(ctx, domain.Download{
		MatchID:  matchID,
		Filename: "ue_update_20260101_msg1.zip",
		Path:     "/tmp/downloads/ue_update_20260101_msg1.zip",
		Size:     1024,
		SHA256:   "abc123",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPruneSeen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.MarkSeen(ctx, "telegram", "c", "old"); err != nil {
		t.Fatal(err)
	}
	// Backdate the entry past the retention window.
	if _, err := s.db.ExecContext(ctx,
		`UPDATE seen_messages SET seen_at = ? WHERE message_id = 'old'`,
		time.Now().Add(-48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.MarkSeen(ctx, "telegram", "c", "new"); err != nil {
		t.Fatal(err)
	}

	n, err := s.PruneSeen(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}

	// The pruned message is observable again.
	first, err := s.MarkSeen(ctx, "telegram", "c", "old")
	if err != nil {
		t.Fatal(err)
	}
	if !first {
		t.Error("pruned message should be first=true again")
	}
}
