package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCleanupCommand(svc *Services) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete inactive sessions and idle conversation histories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if svc.Sessions == nil {
				return fmt.Errorf("cleanup: %w", errNotConfigured)
			}
			if days <= 0 {
				days = svc.CleanupInactiveDays
			}
			ctx := commandContext(cmd)
			now := svc.Now()
			cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

			cmd.Println("🗑️  Cleaning up old sessions...")
			cmd.Println(divider)
			cmd.Printf("Inactive threshold: %d days\n", days)
			cmd.Printf("Cutoff date: %s\n", cutoff.UTC().Format(time.RFC3339))
			cmd.Println(divider)

			deleted, err := svc.Sessions.DeleteInactive(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("delete inactive sessions: %w", err)
			}
			cmd.Printf("✅ Deleted %d inactive sessions.\n", deleted)

			active24h, err := svc.Sessions.CountActive(ctx, now.Add(-24*time.Hour))
			if err != nil {
				return fmt.Errorf("count active sessions: %w", err)
			}
			active7d, err := svc.Sessions.CountActive(ctx, now.Add(-7*24*time.Hour))
			if err != nil {
				return fmt.Errorf("count active sessions: %w", err)
			}
			cmd.Println("\n📊 Remaining sessions:")
			cmd.Println(renderTable([]string{"Window", "Active"}, [][]string{
				{"Active (24h)", fmt.Sprint(active24h)},
				{"Active (7d)", fmt.Sprint(active7d)},
			}))

			if svc.History != nil {
				cmd.Printf("\n🧹 Cleaning up old conversation histories (>%s idle)...\n", svc.HistoryIdle)
				cleared, err := svc.History.ClearIdle(ctx, now.Add(-svc.HistoryIdle))
				if err != nil {
					return fmt.Errorf("clear idle histories: %w", err)
				}
				cmd.Printf("✅ Cleared %d conversation histories.\n", cleared)
			}

			cmd.Println("\n✅ Cleanup completed successfully!")
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "inactivity threshold in days (default CLEANUP_INACTIVE_DAYS)")
	return cmd
}

func newResetSessionsCommand(svc *Services) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset-sessions",
		Short: "Delete ALL sessions",
		Long:  "Deletes every session. Waits a short abort window first unless --yes is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if svc.Sessions == nil {
				return fmt.Errorf("reset sessions: %w", errNotConfigured)
			}
			ctx := commandContext(cmd)

			cmd.Println("⚠️  WARNING: This will delete ALL sessions data!")
			cmd.Println(divider)
			cmd.Println("This action CANNOT be undone.")
			if !yes && svc.AbortWindow > 0 {
				cmd.Printf("Press Ctrl+C to abort within %s...\n", svc.AbortWindow)
			}
			cmd.Println(divider)

			if !yes {
				if err := waitAbortWindow(ctx, svc.AbortWindow); err != nil {
					cmd.Println("❎ Aborted, nothing was deleted.")
					return err
				}
			}

			cmd.Println("🗑️  Starting cleanup...")
			deleted, err := svc.Sessions.DeleteAll(ctx)
			if err != nil {
				return fmt.Errorf("delete sessions: %w", err)
			}
			cmd.Printf("✅ Deleted %d sessions.\n", deleted)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the abort window")
	return cmd
}

func waitAbortWindow(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("reset aborted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
