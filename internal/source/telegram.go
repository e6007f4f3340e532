// Package source implements the watched feeds: Telegram channels,
// Discord channels, and rendered web pages. Each source publishes
// observed posts onto the message bus; classification happens in the
// monitor, not here.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"uewatch/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramUpdateTimeout = 30 // seconds, long-poll timeout for getUpdates

// Telegram watches one or more Telegram channels for new posts.
type Telegram struct {
	token        string
	channels     []string // allowed channel usernames ("@name") or numeric IDs; empty = all
	pollInterval time.Duration

	bot    *tgbotapi.BotAPI
	bus    domain.MessageBus
	logger *slog.Logger

	forwarded atomic.Int64 // posts published since the last sweep
}

type TelegramConfig struct {
	Token        string
	Channels     []string
	PollInterval time.Duration
	Logger       *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	return &Telegram{
		token:        cfg.Token,
		channels:     cfg.Channels,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and begins polling for channel posts.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegramUpdateTimeout
	u.AllowedUpdates = []string{"message", "channel_post"}
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started",
		"channels", t.channels,
		"sweep_interval", t.pollInterval,
	)

	sweep := time.NewTicker(t.pollInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram source stopping")
			bot.StopReceivingUpdates()
			return nil
		case now := <-sweep.C:
			t.logger.Info("sweep completed",
				"at", now.Format(time.RFC3339),
				"posts_since_last", t.forwarded.Swap(0),
			)
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop is a no-op: the bot stops when Start's context is cancelled.
// StopReceivingUpdates panics when called twice.
func (t *Telegram) Stop() error {
	return nil
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	// Channel posts arrive under ChannelPost; posts in groups the bot
	// is a member of arrive under Message.
	msg := update.ChannelPost
	if msg == nil {
		msg = update.Message
	}
	if msg == nil || msg.Chat == nil {
		return
	}

	if !t.isWatched(msg.Chat) {
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" && len(collectAttachments(msg)) == 0 {
		return
	}

	t.logger.Debug("telegram post received",
		"chat_id", msg.Chat.ID,
		"message_id", msg.MessageID,
		"text_len", len(text),
	)

	t.forwarded.Add(1)
	t.bus.Publish(domain.Message{
		Source:      "telegram",
		ChannelID:   strconv.FormatInt(msg.Chat.ID, 10),
		MessageID:   strconv.Itoa(msg.MessageID),
		SenderID:    senderID(msg),
		Text:        text,
		Attachments: collectAttachments(msg),
		Timestamp:   time.Unix(int64(msg.Date), 0),
	})
}

func (t *Telegram) isWatched(chat *tgbotapi.Chat) bool {
	if len(t.channels) == 0 {
		return true // empty list = watch everything the bot can see
	}
	id := strconv.FormatInt(chat.ID, 10)
	for _, c := range t.channels {
		if c == id {
			return true
		}
		if chat.UserName != "" && (c == chat.UserName || c == "@"+chat.UserName) {
			return true
		}
	}
	return false
}

func senderID(msg *tgbotapi.Message) string {
	if msg.From != nil {
		return strconv.FormatInt(msg.From.ID, 10)
	}
	// Channel posts carry no From; attribute them to the chat itself.
	return strconv.FormatInt(msg.Chat.ID, 10)
}

// collectAttachments maps Telegram media onto opaque attachment refs.
// For photos only the largest size is kept.
func collectAttachments(msg *tgbotapi.Message) []domain.Attachment {
	var out []domain.Attachment

	if msg.Document != nil {
		out = append(out, domain.Attachment{
			FileID:   msg.Document.FileID,
			Filename: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			Size:     int64(msg.Document.FileSize),
		})
	}
	if msg.Video != nil {
		out = append(out, domain.Attachment{
			FileID:   msg.Video.FileID,
			Filename: msg.Video.FileName,
			MimeType: msg.Video.MimeType,
			Size:     int64(msg.Video.FileSize),
		})
	}
	if msg.Audio != nil {
		out = append(out, domain.Attachment{
			FileID:   msg.Audio.FileID,
			Filename: msg.Audio.FileName,
			MimeType: msg.Audio.MimeType,
			Size:     int64(msg.Audio.FileSize),
		})
	}
	if len(msg.Photo) > 0 {
		largest := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.FileSize > largest.FileSize {
				largest = p
			}
		}
		out = append(out, domain.Attachment{
			FileID:   largest.FileID,
			MimeType: "image/jpeg",
			Size:     int64(largest.FileSize),
		})
	}

	return out
}
