package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muhshi/demakai-bot/internal/bootstrap"
	"github.com/muhshi/demakai-bot/internal/config"
	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/infrastructure/messaging/whatsapp"
	"github.com/muhshi/demakai-bot/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    "worker",
		Registerer: workerMetrics.Registerer(),
		Queue:      true,
		Messaging:  true,
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()
	app.WatchLexicon(ctx)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("worker metrics listening on :%s", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	poll := whatsapp.PollConfig{Interval: 2 * time.Second, Timeout: 2 * time.Minute}
	if err := app.WhatsApp.Initialize(ctx, poll); err != nil {
		log.Printf("whatsapp initialize error: %v", err)
	}
	if cfg.WhatsAppWebhookURL != "" {
		if err := app.WhatsApp.SetupWebhook(ctx, cfg.WhatsAppWebhookURL); err != nil {
			log.Printf("whatsapp webhook setup error: %v", err)
		}
	}
	go app.WhatsApp.Monitor(ctx, whatsapp.MonitorConfig{
		Interval:       cfg.WhatsAppMonitorInterval,
		MaxReconnects:  cfg.WhatsAppMaxReconnects,
		ReconnectDelay: 5 * time.Second,
		Poll:           poll,
	})

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribeInbound(ctx, func(handlerCtx context.Context, msg domain.InboundMessage) error {
		done := workerMetrics.Track(msg.ReceivedAt)
		err := app.Inbound.Process(handlerCtx, msg)
		done(err)
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
