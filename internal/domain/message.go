package domain

import "time"

// Message is a single post observed on a watched source. It is owned by
// the source for the duration of one trip through the bus; consumers
// must not mutate it.
type Message struct {
	Source      string // "telegram" | "discord" | "page"
	ChannelID   string
	MessageID   string
	SenderID    string
	Text        string
	Attachments []Attachment
	Timestamp   time.Time
}

// Attachment is an opaque reference to media carried by a message.
// FileID is the platform-specific handle used to resolve the bytes.
type Attachment struct {
	FileID   string
	Filename string
	MimeType string
	Size     int64
}

// MatchEvent is emitted when the classifier accepts a message.
type MatchEvent struct {
	Message    Message
	Result     MatchResult
	DetectedAt time.Time
}

// MatchResult is the outcome of classifying one message text.
type MatchResult struct {
	Matched     bool
	Version     string   // normalized "<major>.<minor>", empty when not matched
	MatchedText string   // the version token that triggered the match
	Keywords    []string // update keywords found in the text (advisory only)
}
