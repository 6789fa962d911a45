package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muhshi/demakai-bot/internal/adapters/console"
	"github.com/muhshi/demakai-bot/internal/bootstrap"
	"github.com/muhshi/demakai-bot/internal/config"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:      "console",
		FileOnlyLogs: true,
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()
	app.WatchLexicon(ctx)

	userID := os.Getenv("CONSOLE_USER_ID")
	if userID == "" {
		userID = "console"
	}
	program := tea.NewProgram(console.New(ctx, app.Bot, userID), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		log.Fatalf("console error: %v", err)
	}
}
