package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/infrastructure/spreadsheet"
)

func newStatsCommand(svc *Services) *cobra.Command {
	var (
		asJSON   bool
		xlsxPath string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Long:  "Counts reference codes, publications, sessions, 24h active users, messages and the mode distribution.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if svc.Stats == nil {
				return fmt.Errorf("stats: %w", errNotConfigured)
			}
			now := svc.Now()
			stats, err := svc.Stats.Stats(commandContext(cmd), now.Add(-24*time.Hour))
			if err != nil {
				return fmt.Errorf("collect statistics: %w", err)
			}

			if xlsxPath != "" {
				if err := writeStatsFile(xlsxPath, stats, now); err != nil {
					return err
				}
				cmd.Printf("📄 Statistics written to %s\n", xlsxPath)
			}
			if asJSON {
				data, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal statistics: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}
			printStats(cmd, stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output statistics as JSON")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the statistics to an XLSX workbook")
	return cmd
}

func writeStatsFile(path string, stats domain.StoreStats, now time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := spreadsheet.WriteStats(f, stats, now); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printStats(cmd *cobra.Command, stats domain.StoreStats) {
	cmd.Println(divider)
	cmd.Println("📊 DATABASE STATISTICS")
	cmd.Println(divider)

	cmd.Println("\n📚 Collections:")
	cmd.Println(renderTable([]string{"Collection", "Count"}, [][]string{
		{"KBLI", strconv.Itoa(stats.KBLI)},
		{"KBJI", strconv.Itoa(stats.KBJI)},
		{"Documents", strconv.Itoa(stats.Documents)},
		{"Sessions", strconv.Itoa(stats.Sessions)},
	}))

	cmd.Println("\n👥 User Activity:")
	cmd.Println(renderTable([]string{"Metric", "Value"}, [][]string{
		{"Active (24h)", strconv.Itoa(stats.ActiveUsers24h)},
		{"Total Messages", strconv.Itoa(stats.TotalMessages)},
	}))

	if len(stats.ModeDistribution) > 0 {
		rows := make([][]string, 0, len(stats.ModeDistribution))
		for _, m := range stats.ModeDistribution {
			rows = append(rows, []string{string(m.Mode), strconv.Itoa(m.Count)})
		}
		cmd.Println("\n🎯 Mode Distribution:")
		cmd.Println(renderTable([]string{"Mode", "Sessions"}, rows))
	}
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		String()
}
