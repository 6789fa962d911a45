package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muhshi/demakai-bot/internal/adapters/cli"
	"github.com/muhshi/demakai-bot/internal/bootstrap"
	"github.com/muhshi/demakai-bot/internal/config"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:      "admin",
		FileOnlyLogs: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap error: %v\n", err)
		os.Exit(1)
	}

	root := cli.NewRootCommand(&cli.Services{
		Sessions:            app.Sessions,
		History:             app.History,
		Stats:               app.Stats,
		Codes:               app.Codes,
		Ingestor:            app.Ingest,
		CleanupInactiveDays: cfg.CleanupInactiveDays,
		HistoryIdle:         cfg.HistoryIdle,
		AbortWindow:         5 * time.Second,
	})
	err = root.ExecuteContext(ctx)
	app.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
