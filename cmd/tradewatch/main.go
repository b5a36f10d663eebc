package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tradewatch/internal/alert"
	"tradewatch/internal/config"
	"tradewatch/internal/logger"
	"tradewatch/internal/notify"
	"tradewatch/internal/storage"
	"tradewatch/internal/terminal"
	"tradewatch/internal/watch"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Starting tradewatch")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable state shares one SQLite database with alert history.
	var store *storage.Store
	var state alert.StateStore = alert.NewMemoryStore()
	if cfg.Alerts.DurableState {
		store, err = storage.Open(cfg.Storage.DBPath)
		if err != nil {
			logger.Fatal("Failed to open storage: %v", err)
		}
		defer store.Close()
		state = store
	}

	var channels []notify.Channel
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Notify.Telegram)
		if err != nil {
			logger.Fatal("Failed to set up telegram: %v", err)
		}
		go tg.StartListener(ctx)
		channels = append(channels, tg)
	}
	if cfg.Notify.Discord.Enabled {
		channels = append(channels, notify.NewDiscord(cfg.Notify.Discord))
	}
	if cfg.Notify.Webhook.Enabled {
		channels = append(channels, notify.NewWebhook(cfg.Notify.Webhook))
	}

	sender := &watch.RecordingSender{
		Inner: notify.NewManager(channels...),
		Store: store,
	}
	gate, err := alert.NewGate(cfg.Alerts, sender, nil)
	if err != nil {
		logger.Fatal("Failed to set up alert gate: %v", err)
	}

	client := terminal.NewClient(cfg.Terminal)
	if err := client.Connect(ctx); err != nil {
		logger.Fatal("Failed to connect to terminal: %v", err)
	}

	svc := watch.New(cfg, client, gate, state, store, nil)
	if err := svc.Prime(ctx); err != nil {
		logger.Fatal("Failed to prime watcher: %v", err)
	}

	logger.Info("Watching every %s", cfg.Monitor.PollInterval)
	svc.Run(ctx)
	logger.Info("Shutdown complete")
}
