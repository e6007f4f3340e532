package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:  "~/.uewatch",
			LogLevel: "info",
		},
		Telegram: TelegramConfig{
			Enabled:             false,
			ParseMode:           "Markdown",
			PollIntervalSeconds: 300,
		},
		Discord: DiscordConfig{
			Enabled: false,
		},
		Pages: PagesConfig{
			Enabled:             false,
			PollIntervalSeconds: 900,
		},
		Notify: NotifyConfig{
			Console: true,
		},
		Download: DownloadConfig{
			Enabled:      false,
			Dir:          "~/.uewatch/downloads",
			MaxSizeBytes: 50 * 1024 * 1024,
		},
		Store: StoreConfig{
			DBPath:        "~/.uewatch/uewatch.db",
			RetentionDays: 30,
		},
		Web: WebConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8090,
		},
		Watch: WatchConfig{
			Workers:    4,
			BufferSize: 100,
		},
	}
}
