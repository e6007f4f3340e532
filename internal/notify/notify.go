// Package notify delivers match events to the configured sinks:
// console, a Telegram alert chat, a Slack channel, and the WebSocket
// feed. Sinks are isolated from each other; a slow or failing sink
// never affects the rest.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"uewatch/internal/domain"
	"uewatch/internal/metrics"
)

const (
	notifyTimeout = 30 * time.Second
	previewLen    = 200
)

// Register hooks a notifier onto the bus. Each delivery runs in its
// own goroutine with a timeout; failures are logged and counted but
// never propagate.
func Register(b domain.MessageBus, n domain.Notifier, logger *slog.Logger) {
	b.OnMatch(n.Name(), func(ev domain.MatchEvent) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := n.Notify(ctx, ev); err != nil {
				logger.Error("notification failed", "sink", n.Name(), "err", err)
				metrics.NotifyErrors(n.Name()).Inc()
			}
		}()
	})
}

// formatAlert renders the plain-text alert shared by the Telegram and
// Slack sinks.
func formatAlert(ev domain.MatchEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔔 UE plugin update detected\n\n")
	fmt.Fprintf(&sb, "Version: %s\n", ev.Result.Version)
	fmt.Fprintf(&sb, "Source: %s\n", ev.Message.Source)
	fmt.Fprintf(&sb, "Channel: %s\n", ev.Message.ChannelID)
	fmt.Fprintf(&sb, "Message ID: %s\n", ev.Message.MessageID)
	fmt.Fprintf(&sb, "Date: %s\n", ev.Message.Timestamp.Format(time.RFC1123))
	if len(ev.Result.Keywords) > 0 {
		fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(ev.Result.Keywords, ", "))
	}
	fmt.Fprintf(&sb, "\n%s", preview(ev.Message.Text))
	return sb.String()
}

// preview truncates text to the first 200 runes for display.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLen {
		return text
	}
	return string(runes[:previewLen]) + "..."
}

// splitMessage splits a message into chunks that fit within the max
// length, trying to split on newlines when possible.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}

		// Try to split on a newline.
		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}

		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
