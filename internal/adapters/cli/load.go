package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/infrastructure/spreadsheet"
)

func newImportCodesCommand(svc *Services) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "import-codes [file.xlsx]",
		Short: "Load KBLI/KBJI reference codes from a workbook",
		Long: `Reads every sheet of the workbook. The first row is the header (kode/code, judul/title,
uraian/description, jenis/kind). A row's kind comes from the kind column, else the sheet
name, else --kind. Existing codes are updated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if svc.Codes == nil {
				return fmt.Errorf("import codes: %w", errNotConfigured)
			}
			fallback := domain.ClassificationKind(strings.ToUpper(strings.TrimSpace(kind)))
			if fallback != "" && fallback != domain.KindKBLI && fallback != domain.KindKBJI {
				return domain.WrapError(domain.ErrInvalidInput, "import codes", fmt.Errorf("unknown kind %q", kind))
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			entries, skipped, err := spreadsheet.ReadCodes(f, fallback)
			if err != nil {
				return err
			}
			for _, rowErr := range skipped {
				cmd.PrintErrf("⚠️  skipped %v\n", rowErr)
			}
			if len(entries) == 0 {
				return domain.WrapError(domain.ErrInvalidInput, "import codes", fmt.Errorf("no valid rows in %s", args[0]))
			}

			n, err := svc.Codes.UpsertEntries(commandContext(cmd), entries)
			if err != nil {
				return fmt.Errorf("store codes: %w", err)
			}
			cmd.Printf("✅ Imported %d codes (%d rows skipped).\n", n, len(skipped))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "kind for sheets without KBLI/KBJI in their name (KBLI or KBJI)")
	return cmd
}

func newIngestCommand(svc *Services) *cobra.Command {
	var (
		title      string
		year       string
		sourceType string
		tags       []string
	)
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Load a publication (PDF or text) into the document store",
		Long:  "Extracts the text, splits it into chunks, embeds the chunks in batches and stores the publication.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if svc.Ingestor == nil {
				return fmt.Errorf("ingest: %w", errNotConfigured)
			}
			path := args[0]
			if strings.TrimSpace(title) == "" {
				base := filepath.Base(path)
				title = strings.TrimSuffix(base, filepath.Ext(base))
			}

			cmd.Printf("📥 Ingesting %s...\n", path)
			doc, err := svc.Ingestor.Ingest(commandContext(cmd), domain.IngestRequest{
				Path:       path,
				Title:      title,
				Year:       year,
				SourceType: sourceType,
				Tags:       tags,
			})
			if err != nil {
				return err
			}
			cmd.Printf("✅ Stored %q (%s) with %d chunks.\n", doc.Title, doc.ID, len(doc.Chunks))
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "publication title (default: file name)")
	cmd.Flags().StringVar(&year, "year", "", "publication year, e.g. 2024")
	cmd.Flags().StringVar(&sourceType, "source-type", "publikasi", "source type label shown in listings")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag, repeatable")
	return cmd
}
