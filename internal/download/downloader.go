// Package download persists media attached to matched messages.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"uewatch/internal/domain"
	"uewatch/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const defaultMaxSizeBytes = 50 * 1024 * 1024

// Downloader resolves attachment references and writes the bytes to
// the configured directory. Telegram file IDs are resolved through the
// bot API; plain URLs (Discord attachments) are fetched directly.
type Downloader struct {
	dir          string
	maxSizeBytes int64
	bot          *tgbotapi.BotAPI // nil = telegram attachments are skipped
	store        domain.Store
	httpc        *http.Client
	logger       *slog.Logger
}

type Config struct {
	Dir          string
	MaxSizeBytes int64
	Bot          *tgbotapi.BotAPI
	Store        domain.Store
	Logger       *slog.Logger
}

func New(cfg Config) (*Downloader, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("download directory not configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = defaultMaxSizeBytes
	}
	return &Downloader{
		dir:          cfg.Dir,
		maxSizeBytes: cfg.MaxSizeBytes,
		bot:          cfg.Bot,
		store:        cfg.Store,
		httpc:        &http.Client{Timeout: 5 * time.Minute},
		logger:       cfg.Logger,
	}, nil
}

// Save downloads every attachment of a matched message. Individual
// failures are logged and skipped; Save itself never fails the monitor.
func (d *Downloader) Save(ctx context.Context, matchID int64, ev domain.MatchEvent) {
	for i, att := range ev.Message.Attachments {
		dl, err := d.saveOne(ctx, matchID, ev.Message, att, i)
		if err != nil {
			d.logger.Error("media download failed",
				"message_id", ev.Message.MessageID,
				"file_id", att.FileID,
				"err", err,
			)
			continue
		}
		metrics.Downloads().Inc()
		d.logger.Info("media downloaded", "path", dl.Path, "size", dl.Size)

		if err := d.store.RecordDownload(ctx, dl); err != nil {
			d.logger.Error("cannot record download", "path", dl.Path, "err", err)
		}
	}
}

func (d *Downloader) saveOne(ctx context.Context, matchID int64, msg domain.Message, att domain.Attachment, idx int) (domain.Download, error) {
	if att.Size > d.maxSizeBytes {
		return domain.Download{}, fmt.Errorf("attachment too large: %d bytes (max %d)", att.Size, d.maxSizeBytes)
	}

	url, remotePath, err := d.resolveURL(att)
	if err != nil {
		return domain.Download{}, err
	}

	filename := d.filename(msg, att, remotePath, idx)
	path := filepath.Join(d.dir, filename)

	size, sum, err := d.fetch(ctx, url, path)
	if err != nil {
		os.Remove(path)
		return domain.Download{}, err
	}

	return domain.Download{
		MatchID:   matchID,
		Filename:  filename,
		Path:      path,
		Size:      size,
		SHA256:    sum,
		CreatedAt: time.Now(),
	}, nil
}

// resolveURL turns an attachment reference into a fetchable URL. The
// second return value is the remote file path, used for its extension.
func (d *Downloader) resolveURL(att domain.Attachment) (string, string, error) {
	if strings.HasPrefix(att.FileID, "http://") || strings.HasPrefix(att.FileID, "https://") {
		return att.FileID, att.FileID, nil
	}
	if d.bot == nil {
		return "", "", fmt.Errorf("no telegram client for file ID %s", att.FileID)
	}
	file, err := d.bot.GetFile(tgbotapi.FileConfig{FileID: att.FileID})
	if err != nil {
		return "", "", fmt.Errorf("resolve file %s: %w", att.FileID, err)
	}
	return file.Link(d.bot.Token), file.FilePath, nil
}

// filename builds "ue_update_<timestamp>_msg<id><ext>", matching the
// naming scheme of previously archived media.
func (d *Downloader) filename(msg domain.Message, att domain.Attachment, remotePath string, idx int) string {
	ext := filepath.Ext(att.Filename)
	if ext == "" {
		ext = filepath.Ext(remotePath)
	}

	ts := time.Now().Format("20060102_150405")
	name := fmt.Sprintf("ue_update_%s_msg%s", ts, msg.MessageID)
	if idx > 0 {
		name = fmt.Sprintf("%s_%d", name, idx)
	}
	return name + ext
}

func (d *Downloader) fetch(ctx context.Context, url, path string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := d.httpc.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("fetch media: unexpected status %s", resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	hasher := sha256.New()
	// Read one byte past the cap so oversize bodies are detected.
	limited := io.LimitReader(resp.Body, d.maxSizeBytes+1)
	n, err := io.Copy(io.MultiWriter(out, hasher), limited)
	if err != nil {
		return 0, "", fmt.Errorf("write file: %w", err)
	}
	if n > d.maxSizeBytes {
		return 0, "", fmt.Errorf("media exceeds size cap of %d bytes", d.maxSizeBytes)
	}

	return n, hex.EncodeToString(hasher.Sum(nil)), nil
}
