package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"taskboard/internal/database"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type seedAccount struct {
	Username   string `yaml:"username"`
	TelegramID string `yaml:"telegram_id"`
}

type AccountsConfig struct {
	Accounts []seedAccount `yaml:"accounts"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		accountsPath = flag.String("accounts", "configs/accounts.yaml", "path to accounts.yaml")
		dbPath       = flag.String("db", "./data/taskboard.db", "path to sqlite db")
		purgeAfter   = flag.Duration("purge-completed", 0, "also delete delivered queue rows older than this")
	)
	flag.Parse()

	data, err := os.ReadFile(*accountsPath)
	if err != nil {
		return fmt.Errorf("read accounts: %w", err)
	}
	var cfg AccountsConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse accounts: %w", err)
	}
	if len(cfg.Accounts) == 0 {
		return fmt.Errorf("no accounts in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seeded, bound := 0, 0
	for _, acc := range cfg.Accounts {
		name := strings.TrimSpace(acc.Username)
		if name == "" {
			continue
		}
		if err = db.EnsureAccount(ctx, name); err != nil {
			return fmt.Errorf("ensure %s: %w", name, err)
		}
		seeded++
		if acc.TelegramID == "" {
			continue
		}
		if err = db.SetBinding(ctx, name, acc.TelegramID); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
		bound++
	}

	purged := int64(0)
	if *purgeAfter > 0 {
		purged, err = db.EventQueue().PurgeCompleted(ctx, *purgeAfter)
		if err != nil {
			return fmt.Errorf("purge queue: %w", err)
		}
	}

	fmt.Printf("done: accounts=%d bound=%d purged=%d\n", seeded, bound, purged)
	return nil
}
