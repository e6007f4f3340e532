package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for uewatch.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
	Pages    PagesConfig    `json:"pages"`
	Classify ClassifyConfig `json:"classify"`
	Notify   NotifyConfig   `json:"notify"`
	Download DownloadConfig `json:"download"`
	Store    StoreConfig    `json:"store"`
	Web      WebConfig      `json:"web"`
	Watch    WatchConfig    `json:"watch"`
}

type GeneralConfig struct {
	DataDir  string `json:"dataDir"`
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

// TelegramConfig configures the primary watched source. Channels is an
// allow-list of channel usernames or numeric IDs; empty = accept all
// channels the bot can see.
type TelegramConfig struct {
	Enabled             bool           `json:"enabled"`
	Token               string         `json:"token"`
	Channels            FlexStringList `json:"channels"`
	AlertChatID         string         `json:"alertChatId,omitempty"` // chat to send match alerts to
	ParseMode           string         `json:"parseMode"`
	PollIntervalSeconds int            `json:"pollIntervalSeconds"`
}

type DiscordConfig struct {
	Enabled  bool           `json:"enabled"`
	Token    string         `json:"token"`
	Channels FlexStringList `json:"channels"`
}

// PagesConfig configures watched web pages rendered via headless Chrome.
type PagesConfig struct {
	Enabled             bool     `json:"enabled"`
	URLs                []string `json:"urls"`
	PollIntervalSeconds int      `json:"pollIntervalSeconds"`
}

type ClassifyConfig struct {
	RulesFile string `json:"rulesFile,omitempty"` // optional YAML rules file
}

type NotifyConfig struct {
	Console bool        `json:"console"`
	Slack   SlackConfig `json:"slack"`
}

type SlackConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"botToken"`
	Channel  string `json:"channel"`
}

type DownloadConfig struct {
	Enabled      bool   `json:"enabled"`
	Dir          string `json:"dir"`
	MaxSizeBytes int64  `json:"maxSizeBytes"`
}

type StoreConfig struct {
	DBPath        string `json:"dbPath"`
	RetentionDays int    `json:"retentionDays"`
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type WatchConfig struct {
	Workers    int `json:"workers"`
	BufferSize int `json:"bufferSize"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["@channel", -1001234] both become strings).
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	// Fallback: array of mixed types
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.uewatch).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".uewatch"
	}
	return filepath.Join(home, ".uewatch")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.DataDir = ExpandPath(cfg.General.DataDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.Download.Dir = ExpandPath(cfg.Download.Dir)
	cfg.Classify.RulesFile = ExpandPath(cfg.Classify.RulesFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Telegram.Enabled && cfg.Telegram.Token == "" {
		errs = append(errs, "telegram.token is required when telegram is enabled")
	}
	if cfg.Telegram.PollIntervalSeconds < 1 {
		errs = append(errs, "telegram.pollIntervalSeconds must be >= 1")
	}
	if cfg.Discord.Enabled && cfg.Discord.Token == "" {
		errs = append(errs, "discord.token is required when discord is enabled")
	}
	if cfg.Pages.Enabled {
		if len(cfg.Pages.URLs) == 0 {
			errs = append(errs, "pages.urls must not be empty when pages is enabled")
		}
		if cfg.Pages.PollIntervalSeconds < 1 {
			errs = append(errs, "pages.pollIntervalSeconds must be >= 1")
		}
	}
	if cfg.Notify.Slack.Enabled {
		if cfg.Notify.Slack.BotToken == "" {
			errs = append(errs, "notify.slack.botToken is required when slack is enabled")
		}
		if cfg.Notify.Slack.Channel == "" {
			errs = append(errs, "notify.slack.channel is required when slack is enabled")
		}
	}
	if cfg.Download.Enabled && cfg.Download.Dir == "" {
		errs = append(errs, "download.dir is required when download is enabled")
	}
	if cfg.Download.MaxSizeBytes < 0 {
		errs = append(errs, "download.maxSizeBytes must be >= 0")
	}
	if cfg.Store.RetentionDays < 1 {
		errs = append(errs, "store.retentionDays must be >= 1")
	}
	if cfg.Web.Port < 0 || cfg.Web.Port > 65535 {
		errs = append(errs, "web.port must be between 0 and 65535")
	}
	if cfg.Watch.Workers < 1 || cfg.Watch.Workers > 64 {
		errs = append(errs, "watch.workers must be between 1 and 64")
	}
	if cfg.Watch.BufferSize < 1 {
		errs = append(errs, "watch.bufferSize must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
