package spreadsheet

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

const (
	summarySheet = "Ringkasan"
	modeSheet    = "Mode"
)

// WriteStats renders a two-sheet workbook: counters and the mode distribution.
func WriteStats(w io.Writer, stats domain.StoreStats, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	summary := [][]any{
		{"Metrik", "Nilai"},
		{"KBLI", stats.KBLI},
		{"KBJI", stats.KBJI},
		{"Publikasi", stats.Documents},
		{"Sesi", stats.Sessions},
		{"Pengguna aktif 24 jam", stats.ActiveUsers24h},
		{"Total pesan", stats.TotalMessages},
		{"Dibuat", generatedAt.Format(time.RFC3339)},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return err
	}

	if _, err := f.NewSheet(modeSheet); err != nil {
		return fmt.Errorf("create mode sheet: %w", err)
	}
	modes := [][]any{{"Mode", "Jumlah sesi"}}
	for _, m := range stats.ModeDistribution {
		modes = append(modes, []any{string(m.Mode), m.Count})
	}
	if err := writeRows(f, modeSheet, modes); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, ref, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
