package source

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestTelegram_IsWatched(t *testing.T) {
	src := NewTelegram(TelegramConfig{
		Channels: []string{"@uechannel", "-1001234567890"},
		Logger:   testLogger(),
	})

	cases := []struct {
		name string
		chat tgbotapi.Chat
		want bool
	}{
		{"by username with @", tgbotapi.Chat{ID: 1, UserName: "uechannel"}, true},
		{"by numeric id", tgbotapi.Chat{ID: -1001234567890}, true},
		{"unlisted channel", tgbotapi.Chat{ID: 42, UserName: "other"}, false},
	}
	for _, tc := range cases {
		if got := src.isWatched(&tc.chat); got != tc.want {
			t.Errorf("%s: isWatched = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTelegram_IsWatched_EmptyListAllowsAll(t *testing.T) {
	src := NewTelegram(TelegramConfig{Logger: testLogger()})
	if !src.isWatched(&tgbotapi.Chat{ID: 99}) {
		t.Error("empty allow-list should watch everything")
	}
}

func TestTelegram_DefaultPollInterval(t *testing.T) {
	src := NewTelegram(TelegramConfig{Logger: testLogger()})
	if src.pollInterval != 5*time.Minute {
		t.Errorf("pollInterval = %v, want 5m default", src.pollInterval)
	}
}

func TestCollectAttachments_LargestPhoto(t *testing.T) {
	msg := &tgbotapi.Message{
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", FileSize: 100},
			{FileID: "large", FileSize: 9000},
			{FileID: "medium", FileSize: 4000},
		},
	}
	atts := collectAttachments(msg)
	if len(atts) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(atts))
	}
	if atts[0].FileID != "large" {
		t.Errorf("expected largest photo, got %s", atts[0].FileID)
	}
}

func TestCollectAttachments_Document(t *testing.T) {
	msg := &tgbotapi.Message{
		Document: &tgbotapi.Document{
			FileID:   "doc1",
			FileName: "plugin-5.4.zip",
			MimeType: "application/zip",
			FileSize: 2048,
		},
	}
	atts := collectAttachments(msg)
	if len(atts) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(atts))
	}
	if atts[0].Filename != "plugin-5.4.zip" || atts[0].Size != 2048 {
		t.Errorf("unexpected attachment: %+v", atts[0])
	}
}

func TestCollectAttachments_None(t *testing.T) {
	if atts := collectAttachments(&tgbotapi.Message{Text: "plain"}); len(atts) != 0 {
		t.Errorf("expected no attachments, got %v", atts)
	}
}

func TestDiscord_IsWatched(t *testing.T) {
	src := NewDiscord(DiscordConfig{Channels: []string{"111", "222"}, Logger: testLogger()})
	if !src.isWatched("111") {
		t.Error("listed channel should be watched")
	}
	if src.isWatched("333") {
		t.Error("unlisted channel should not be watched")
	}

	open := NewDiscord(DiscordConfig{Logger: testLogger()})
	if !open.isWatched("333") {
		t.Error("empty allow-list should watch everything")
	}
}

func TestDiscordMessage_KeepsPostTimestamp(t *testing.T) {
	posted := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "42",
		ChannelID: "111",
		Content:   "UE 5.4 plugin update",
		Author:    &discordgo.User{ID: "u1"},
		Timestamp: posted,
	}}

	msg := discordMessage(m)
	if !msg.Timestamp.Equal(posted) {
		t.Errorf("timestamp = %v, want the original post time %v", msg.Timestamp, posted)
	}
	if msg.Source != "discord" || msg.MessageID != "42" || msg.SenderID != "u1" {
		t.Errorf("unexpected message: %+v", msg)
	}
}
