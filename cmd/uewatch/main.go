package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"uewatch/internal/bus"
	"uewatch/internal/classify"
	"uewatch/internal/config"
	"uewatch/internal/domain"
	"uewatch/internal/download"
	"uewatch/internal/notify"
	"uewatch/internal/source"
	"uewatch/internal/store"
	"uewatch/internal/watch"
	"uewatch/internal/web"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "uewatch",
		Short: "uewatch: Unreal Engine plugin update monitor",
		Long:  "uewatch watches Telegram/Discord channels and web pages for Unreal Engine plugin update announcements and sends alerts when one is detected.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.uewatch/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(daemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			dataDir := config.ExpandPath(cfg.General.DataDir)
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "dataDir", dataDir)
			return nil
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify a message text (args or stdin)",
		Long:  "Runs the update classifier over the given text (or stdin when no args) and prints the result. Exits 1 when the text is not an update announcement.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				data, err := io.ReadAll(bufio.NewReader(os.Stdin))
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}

			classifier := loadClassifier()
			res := classifier.Classify(text)
			if !res.Matched {
				fmt.Println("no match")
				os.Exit(1)
			}
			fmt.Printf("match\n")
			fmt.Printf("  version:  %s\n", res.Version)
			fmt.Printf("  token:    %s\n", res.MatchedText)
			if len(res.Keywords) > 0 {
				fmt.Printf("  keywords: %s\n", strings.Join(res.Keywords, ", "))
			}
			if classifier.Muted(text) {
				fmt.Printf("  muted:    yes\n")
			}
			return nil
		},
	}
}

// loadClassifier builds a classifier from the configured rules file,
// falling back to the built-in keyword set when no config or rules exist.
func loadClassifier() *classify.Classifier {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return mustClassifier(classify.Rules{})
	}
	rules, err := classify.LoadRules(cfg.Classify.RulesFile)
	if err != nil {
		logger.Warn("rules file ignored", "path", cfg.Classify.RulesFile, "err", err)
		rules = classify.Rules{}
	}
	return mustClassifier(rules)
}

func mustClassifier(rules classify.Rules) *classify.Classifier {
	c, err := classify.New(rules)
	if err != nil {
		logger.Warn("bad classify rules, using defaults", "err", err)
		c, _ = classify.New(classify.Rules{})
	}
	return c
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show monitor status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			st, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
			if err != nil {
				logger.Info("store", "path", cfg.Store.DBPath, "open", false, "err", err)
				return nil
			}
			defer st.Close()

			ctx := context.Background()
			count, err := st.CountMatches(ctx)
			if err != nil {
				return fmt.Errorf("count matches: %w", err)
			}
			logger.Info("store", "path", cfg.Store.DBPath, "matches", count)

			recent, err := st.ListMatches(ctx, 5)
			if err != nil {
				return fmt.Errorf("list matches: %w", err)
			}
			for _, m := range recent {
				logger.Info("match",
					"version", m.Version,
					"source", m.Source,
					"channel", m.ChannelID,
					"detected", m.DetectedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and show configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. telegram.pollIntervalSeconds)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. telegram.pollIntervalSeconds 60)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show all config values (tokens masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Start the monitor (sources + classifier + notifiers)",
		Long:  "Starts all enabled sources (Telegram, Discord, web pages), the classifier pipeline, and the configured notifiers. Press Ctrl+C to stop.",
		RunE:  runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = buildLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	messageBus := bus.New(cfg.Watch.BufferSize, logger)

	rules, err := classify.LoadRules(cfg.Classify.RulesFile)
	if err != nil {
		return fmt.Errorf("load classify rules: %w", err)
	}
	classifier, err := classify.New(rules)
	if err != nil {
		return fmt.Errorf("compile classify rules: %w", err)
	}

	// The Telegram bot handle is shared between the source notifier and
	// the downloader (file resolution needs bot credentials).
	var bot *tgbotapi.BotAPI
	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("telegram bot init: %w", err)
		}
	}

	var downloader *download.Downloader
	if cfg.Download.Enabled {
		downloader, err = download.New(download.Config{
			Dir:          cfg.Download.Dir,
			MaxSizeBytes: cfg.Download.MaxSizeBytes,
			Bot:          bot,
			Store:        st,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("downloader: %w", err)
		}
		logger.Info("downloads enabled", "dir", cfg.Download.Dir)
	}

	registerNotifiers(cfg, messageBus)

	var webSrv *web.Server
	if cfg.Web.Enabled {
		webSrv = web.NewServer(web.Config{
			Host:    cfg.Web.Host,
			Port:    cfg.Web.Port,
			Version: version,
			Store:   st,
			Logger:  logger,
		})
		notify.Register(messageBus, webSrv.Hub(), logger)
		go func() {
			if err := webSrv.Start(ctx); err != nil {
				logger.Error("web server error", "err", err)
			}
		}()
	}

	monitor := watch.New(watch.Config{
		Bus:        messageBus,
		Store:      st,
		Classifier: classifier,
		Downloader: downloader,
		Logger:     logger,
		Workers:    cfg.Watch.Workers,
		Retention:  time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour,
	})
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		monitor.Run(ctx)
	}()

	sources := startSources(ctx, cfg, messageBus)
	if len(sources) == 0 {
		return fmt.Errorf("no sources enabled; enable telegram, discord, or pages in %s", cfgPath)
	}

	logger.Info("watch started. Press Ctrl+C to stop.", "sources", len(sources))

	// Block until shutdown signal
	<-ctx.Done()
	logger.Info("shutting down...")

	// Graceful shutdown with timeout
	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, src := range sources {
			if err := src.Stop(); err != nil {
				logger.Warn("source stop error", "source", src.Name(), "err", err)
			}
		}
		messageBus.Close()
		<-monitorDone
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		shutdownErr = fmt.Errorf("shutdown timed out")
	}

	return shutdownErr
}

// buildLogger creates the watch logger honoring logLevel and the optional
// log file.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := io.Writer(os.Stderr)
	if cfg.General.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err == nil {
			if f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				out = io.MultiWriter(os.Stderr, f)
			} else {
				logger.Warn("cannot open log file, logging to stderr only", "path", cfg.General.LogFile, "err", err)
			}
		}
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// registerNotifiers wires every enabled alert sink onto the bus.
func registerNotifiers(cfg *config.Config, messageBus domain.MessageBus) {
	if cfg.Notify.Console {
		notify.Register(messageBus, notify.NewConsole(notify.ConsoleConfig{Logger: logger}), logger)
	}

	if cfg.Telegram.Enabled && cfg.Telegram.AlertChatID != "" {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Token:     cfg.Telegram.Token,
			ChatID:    cfg.Telegram.AlertChatID,
			ParseMode: cfg.Telegram.ParseMode,
			Logger:    logger,
		})
		if err != nil {
			logger.Error("telegram notifier disabled", "err", err)
		} else {
			notify.Register(messageBus, tg, logger)
		}
	}

	if cfg.Notify.Slack.Enabled {
		notify.Register(messageBus, notify.NewSlack(notify.SlackConfig{
			BotToken: cfg.Notify.Slack.BotToken,
			Channel:  cfg.Notify.Slack.Channel,
			Logger:   logger,
		}), logger)
	}
}

// startSources starts every enabled source in its own goroutine and
// returns the started sources for shutdown.
func startSources(ctx context.Context, cfg *config.Config, messageBus domain.MessageBus) []domain.Source {
	var sources []domain.Source

	if cfg.Telegram.Enabled {
		tg := source.NewTelegram(source.TelegramConfig{
			Token:        cfg.Telegram.Token,
			Channels:     cfg.Telegram.Channels,
			PollInterval: time.Duration(cfg.Telegram.PollIntervalSeconds) * time.Second,
			Logger:       logger,
		})
		sources = append(sources, tg)
		logger.Info("telegram source enabled", "channels", len(cfg.Telegram.Channels))
	} else {
		logger.Info("telegram source disabled")
	}

	if cfg.Discord.Enabled {
		dc := source.NewDiscord(source.DiscordConfig{
			Token:    cfg.Discord.Token,
			Channels: cfg.Discord.Channels,
			Logger:   logger,
		})
		sources = append(sources, dc)
		logger.Info("discord source enabled", "channels", len(cfg.Discord.Channels))
	}

	if cfg.Pages.Enabled && len(cfg.Pages.URLs) > 0 {
		pg := source.NewPage(source.PageConfig{
			URLs:         cfg.Pages.URLs,
			PollInterval: time.Duration(cfg.Pages.PollIntervalSeconds) * time.Second,
			Logger:       logger,
		})
		sources = append(sources, pg)
		logger.Info("page source enabled", "urls", len(cfg.Pages.URLs))
	}

	for _, src := range sources {
		go func(s domain.Source) {
			if err := s.Start(ctx, messageBus); err != nil {
				logger.Error("source error", "source", s.Name(), "err", err)
			}
		}(src)
	}

	return sources
}
