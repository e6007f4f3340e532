package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"uewatch/internal/domain"

	"github.com/chromedp/chromedp"
)

const pageRenderTimeout = 60 * time.Second

// Page polls JS-rendered web pages (release-notes feeds, marketplace
// product pages) through headless Chrome and publishes their body text
// as synthetic messages. The message ID is the content hash, so an
// unchanged page is deduplicated by the store and an edited page is
// re-classified exactly once.
type Page struct {
	urls         []string
	pollInterval time.Duration
	bus          domain.MessageBus
	logger       *slog.Logger
}

type PageConfig struct {
	URLs         []string
	PollInterval time.Duration
	Logger       *slog.Logger
}

func NewPage(cfg PageConfig) *Page {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Minute
	}
	return &Page{
		urls:         cfg.URLs,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}
}

func (p *Page) Name() string { return "page" }

// Start polls the configured URLs until ctx is cancelled. The first
// poll runs immediately.
func (p *Page) Start(ctx context.Context, bus domain.MessageBus) error {
	p.bus = bus
	p.logger.Info("page source started",
		"urls", len(p.urls),
		"poll_interval", p.pollInterval,
	)

	p.pollAll(ctx)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("page source stopping")
			return nil
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

func (p *Page) Stop() error { return nil }

func (p *Page) pollAll(ctx context.Context) {
	for _, url := range p.urls {
		if ctx.Err() != nil {
			return
		}
		text, err := p.render(ctx, url)
		if err != nil {
			p.logger.Error("page render failed", "url", url, "err", err)
			continue
		}

		sum := sha256.Sum256([]byte(text))
		p.bus.Publish(domain.Message{
			Source:    "page",
			ChannelID: url,
			MessageID: hex.EncodeToString(sum[:8]),
			Text:      text,
			Timestamp: time.Now(),
		})
	}
}

// render navigates to url in a fresh headless Chrome tab and returns
// the visible body text.
func (p *Page) render(parent context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, pageRenderTimeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var text string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Text("body", &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}
