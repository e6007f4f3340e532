package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"uewatch/internal/classify"
	"uewatch/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your uewatch installation",
		Long: `Verifies that uewatch's configuration, database, sources, and
download directory are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("uewatch Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'uewatch init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
			} else {
				printPass("Config validation", "valid")
				passed++
			}

			if cfg == nil {
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}

			// 3. Database writable
			dbPath := cfg.Store.DBPath
			if dbPath == "" {
				home, _ := os.UserHomeDir()
				dbPath = home + "/.uewatch/uewatch.db"
			}
			if err := checkDatabase(dbPath); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", dbPath)
				passed++
			}

			// 4. Sources
			sourceCount := 0
			if cfg.Telegram.Enabled {
				sourceCount++
				if cfg.Telegram.Token == "" {
					printFail("Source: telegram", "enabled but no token configured")
					failed++
				} else {
					if bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token); err != nil {
						printWarn("Source: telegram", fmt.Sprintf("token not verified: %v", err))
						warned++
					} else {
						printPass("Source: telegram", fmt.Sprintf("authenticated as @%s", bot.Self.UserName))
						passed++
					}
					if len(cfg.Telegram.Channels) == 0 {
						printWarn("Telegram channels", "none listed, watching everything the bot can see")
						warned++
					} else {
						printPass("Telegram channels", fmt.Sprintf("%d channel(s)", len(cfg.Telegram.Channels)))
						passed++
					}
				}
			}
			if cfg.Discord.Enabled {
				sourceCount++
				if cfg.Discord.Token == "" {
					printFail("Source: discord", "enabled but no token configured")
					failed++
				} else {
					printPass("Source: discord", fmt.Sprintf("%d channel(s)", len(cfg.Discord.Channels)))
					passed++
				}
			}
			if cfg.Pages.Enabled {
				sourceCount++
				if len(cfg.Pages.URLs) == 0 {
					printFail("Source: pages", "enabled but no URLs configured")
					failed++
				} else {
					printPass("Source: pages", fmt.Sprintf("%d URL(s)", len(cfg.Pages.URLs)))
					passed++
				}
			}
			if sourceCount == 0 {
				printFail("Sources", "no sources enabled")
				failed++
			}

			// 5. Classify rules file parses
			if cfg.Classify.RulesFile != "" {
				if _, err := classify.LoadRules(cfg.Classify.RulesFile); err != nil {
					printFail("Rules file", err.Error())
					failed++
				} else {
					printPass("Rules file", cfg.Classify.RulesFile)
					passed++
				}
			}

			// 6. Download directory writable
			if cfg.Download.Enabled {
				if err := checkWritableDir(cfg.Download.Dir); err != nil {
					printFail("Download dir", err.Error())
					failed++
				} else {
					printPass("Download dir", cfg.Download.Dir)
					passed++
				}
			}

			// 7. Web port
			if cfg.Web.Enabled {
				port := cfg.Web.Port
				if port == 0 {
					port = 8090
				}
				if err := checkPort(port); err != nil {
					printWarn("Web port", fmt.Sprintf("port %d may be in use: %v", port, err))
					warned++
				} else {
					printPass("Web port", fmt.Sprintf(":%d available", port))
					passed++
				}
			}

			// 8. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running uewatch.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nuewatch should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! uewatch is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create: %w", err)
	}
	probe := filepath.Join(dir, ".doctor_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	os.Remove(probe)
	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
