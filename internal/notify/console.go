package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"uewatch/internal/domain"
)

// Console prints a boxed notification to stdout.
type Console struct {
	out    io.Writer
	logger *slog.Logger
}

type ConsoleConfig struct {
	Out    io.Writer // defaults to os.Stdout
	Logger *slog.Logger
}

func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Console{out: cfg.Out, logger: cfg.Logger}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Notify(_ context.Context, ev domain.MatchEvent) error {
	_, err := fmt.Fprintf(c.out, `
╔════════════════════════════════════════╗
║   UE PLUGIN UPDATE DETECTED!           ║
╚════════════════════════════════════════╝

Version: %s
Date: %s
Source: %s
Channel: %s
Message ID: %s

Message Preview:
%s

`,
		ev.Result.Version,
		ev.Message.Timestamp.Format(time.RFC1123),
		ev.Message.Source,
		ev.Message.ChannelID,
		ev.Message.MessageID,
		preview(ev.Message.Text),
	)
	if err != nil {
		return fmt.Errorf("console write: %w", err)
	}
	c.logger.Info("update notification printed", "version", ev.Result.Version)
	return nil
}
