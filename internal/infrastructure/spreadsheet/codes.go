package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

// RowError describes a skipped spreadsheet row.
type RowError struct {
	Sheet string
	Row   int
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s row %d: %v", e.Sheet, e.Row, e.Err)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var headerAliases = map[string]string{
	"code":        "code",
	"kode":        "code",
	"title":       "title",
	"judul":       "title",
	"nama":        "title",
	"description": "description",
	"deskripsi":   "description",
	"uraian":      "description",
	"kind":        "kind",
	"jenis":       "kind",
}

// ReadCodes reads classification rows from every sheet. The first row of a sheet is the
// header. A row's kind comes from a kind column, else the sheet name (KBLI/KBJI), else fallback.
func ReadCodes(r io.Reader, fallback domain.ClassificationKind) ([]domain.ClassificationEntry, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "open workbook", err)
	}
	defer f.Close()

	var (
		entries []domain.ClassificationEntry
		skipped []RowError
	)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		columns := mapHeader(rows[0])
		if _, ok := columns["code"]; !ok {
			skipped = append(skipped, RowError{Sheet: sheet, Row: 1, Err: fmt.Errorf("no code column")})
			continue
		}
		sheetKind := kindFromName(sheet, fallback)

		for i, row := range rows[1:] {
			if isBlank(row) {
				continue
			}
			entry := domain.ClassificationEntry{
				Code:        cell(row, columns, "code"),
				Title:       cell(row, columns, "title"),
				Description: cell(row, columns, "description"),
				Kind:        sheetKind,
			}
			if k := cell(row, columns, "kind"); k != "" {
				entry.Kind = domain.ClassificationKind(strings.ToUpper(k))
			}
			if err := validate.Struct(entry); err != nil {
				skipped = append(skipped, RowError{Sheet: sheet, Row: i + 2, Err: err})
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries, skipped, nil
}

func mapHeader(header []string) map[string]int {
	out := make(map[string]int, len(header))
	for i, h := range header {
		if name, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, seen := out[name]; !seen {
				out[name] = i
			}
		}
	}
	return out
}

func cell(row []string, columns map[string]int, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func kindFromName(sheet string, fallback domain.ClassificationKind) domain.ClassificationKind {
	upper := strings.ToUpper(sheet)
	switch {
	case strings.Contains(upper, string(domain.KindKBLI)):
		return domain.KindKBLI
	case strings.Contains(upper, string(domain.KindKBJI)):
		return domain.KindKBJI
	default:
		return fallback
	}
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
