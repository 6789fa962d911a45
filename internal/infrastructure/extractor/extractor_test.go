package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

func TestExtractPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ringkasan.txt")
	if err := os.WriteFile(path, []byte("\n  Indeks Pembangunan Manusia 2023  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	text, err := New().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "Indeks Pembangunan Manusia 2023" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractRejectsBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.txt")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New().Extract(context.Background(), path); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExtractUnsupportedExtension(t *testing.T) {
	if _, err := New().Extract(context.Background(), "laporan.docx"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestExtractMissingPDF(t *testing.T) {
	if _, err := New().Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatalf("expected error for missing pdf")
	}
}
