package source

import (
	"context"
	"fmt"
	"log/slog"

	"uewatch/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// Discord watches one or more Discord channels for new messages.
type Discord struct {
	token    string
	channels []string // allowed channel IDs; empty = all
	session  *discordgo.Session
	bus      domain.MessageBus
	logger   *slog.Logger
}

type DiscordConfig struct {
	Token    string
	Channels []string
	Logger   *slog.Logger
}

func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:    cfg.Token,
		channels: cfg.Channels,
		logger:   cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Start connects to Discord using a bot token and begins listening.
func (d *Discord) Start(ctx context.Context, bus domain.MessageBus) error {
	d.bus = bus

	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		// Ignore the bot's own messages.
		if m.Author != nil && m.Author.ID == s.State.User.ID {
			return
		}
		if !d.isWatched(m.ChannelID) {
			return
		}

		d.logger.Debug("discord message received",
			"channel_id", m.ChannelID,
			"message_id", m.ID,
			"content_len", len(m.Content),
		)

		bus.Publish(discordMessage(m))
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}

	d.logger.Info("discord connected",
		"user", session.State.User.Username,
		"channels", d.channels,
	)

	<-ctx.Done()
	d.logger.Info("discord source stopping")
	return session.Close()
}

func (d *Discord) Stop() error {
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

func (d *Discord) isWatched(channelID string) bool {
	if len(d.channels) == 0 {
		return true
	}
	for _, c := range d.channels {
		if c == channelID {
			return true
		}
	}
	return false
}

// discordMessage converts a gateway event into a bus message, keeping
// the original post timestamp.
func discordMessage(m *discordgo.MessageCreate) domain.Message {
	return domain.Message{
		Source:      "discord",
		ChannelID:   m.ChannelID,
		MessageID:   m.ID,
		SenderID:    authorID(m),
		Text:        m.Content,
		Attachments: discordAttachments(m),
		Timestamp:   m.Timestamp,
	}
}

func authorID(m *discordgo.MessageCreate) string {
	if m.Author != nil {
		return m.Author.ID
	}
	return ""
}

func discordAttachments(m *discordgo.MessageCreate) []domain.Attachment {
	var out []domain.Attachment
	for _, a := range m.Attachments {
		out = append(out, domain.Attachment{
			FileID:   a.URL,
			Filename: a.Filename,
			MimeType: a.ContentType,
			Size:     int64(a.Size),
		})
	}
	return out
}
