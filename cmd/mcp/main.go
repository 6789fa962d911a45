package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/muhshi/demakai-bot/internal/adapters/mcp"
	"github.com/muhshi/demakai-bot/internal/bootstrap"
	"github.com/muhshi/demakai-bot/internal/config"
)

func main() {
	log.SetOutput(os.Stderr)
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol.
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:      "mcp",
		FileOnlyLogs: true,
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()
	app.WatchLexicon(ctx)

	tools := mcpadapter.NewTools(app.Retrieval, app.Retrieval, app.Bot, app.Logger)
	if err := tools.ServeStdio(); err != nil {
		log.Printf("mcp server error: %v", err)
	}
}
