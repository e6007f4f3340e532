package domain

import (
	"context"
	"time"
)

// Match is a stored classification hit.
type Match struct {
	ID          int64
	Source      string
	ChannelID   string
	MessageID   string
	Version     string
	MatchedText string
	MessageText string
	DetectedAt  time.Time
}

// Download records one persisted media file.
type Download struct {
	ID        int64
	MatchID   int64
	Filename  string
	Path      string
	Size      int64
	SHA256    string
	CreatedAt time.Time
}

// Store is the durable state of the monitor: which messages have been
// seen, which matched, and which media files were saved.
type Store interface {
	// MarkSeen records the message and reports whether this is the
	// first time it has been observed.
	MarkSeen(ctx context.Context, source, channelID, messageID string) (first bool, err error)
	RecordMatch(ctx context.Context, m Match) (int64, error)
	ListMatches(ctx context.Context, limit int) ([]Match, error)
	CountMatches(ctx context.Context) (int64, error)
	RecordDownload(ctx context.Context, d Download) error
	PruneSeen(ctx context.Context, olderThan time.Duration) (int64, error)
	Close() error
}
