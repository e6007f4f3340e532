package notify

import (
	"context"
	"fmt"
	"log/slog"

	"uewatch/internal/domain"

	"github.com/slack-go/slack"
)

// Slack posts match alerts to a Slack channel.
type Slack struct {
	client  *slack.Client
	channel string
	logger  *slog.Logger
}

type SlackConfig struct {
	BotToken string
	Channel  string
	Logger   *slog.Logger
}

func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{
		client:  slack.New(cfg.BotToken),
		channel: cfg.Channel,
		logger:  cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Notify(ctx context.Context, ev domain.MatchEvent) error {
	_, ts, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(formatAlert(ev), false),
	)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	s.logger.Info("slack alert sent", "channel", s.channel, "ts", ts, "version", ev.Result.Version)
	return nil
}
