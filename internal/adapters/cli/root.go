package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/muhshi/demakai-bot/internal/core/ports"
)

const divider = "═══════════════════════════════════════"

// Services are the stores and use cases the admin commands operate on. Fields a command
// does not need may be nil; the command reports that instead of panicking.
type Services struct {
	Sessions ports.SessionRepository
	History  ports.HistoryStore
	Stats    ports.StatsReader
	Codes    ports.ClassificationWriter
	Ingestor ports.PublicationIngestor

	CleanupInactiveDays int
	HistoryIdle         time.Duration
	// AbortWindow is how long reset-sessions waits for Ctrl+C before deleting.
	AbortWindow time.Duration
	Now         func() time.Time
}

var errNotConfigured = errors.New("service not configured")

func NewRootCommand(svc *Services) *cobra.Command {
	if svc.Now == nil {
		svc.Now = time.Now
	}
	if svc.CleanupInactiveDays <= 0 {
		svc.CleanupInactiveDays = 90
	}
	if svc.HistoryIdle <= 0 {
		svc.HistoryIdle = 24 * time.Hour
	}

	root := &cobra.Command{
		Use:           "demakai-admin",
		Short:         "DemakAI maintenance commands",
		Long:          "Maintenance for the DemakAI WhatsApp bot: statistics, session cleanup and reference data loading.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newStatsCommand(svc),
		newCleanupCommand(svc),
		newResetSessionsCommand(svc),
		newImportCodesCommand(svc),
		newIngestCommand(svc),
	)
	return root
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
