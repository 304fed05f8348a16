package synth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/scanhub/scanhub/internal/model"
)

var testTime = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func newTestGenerator() *Generator {
	return &Generator{now: func() time.Time { return testTime }}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		docType string
		format  string
		want    string
	}{
		{model.DocInvoice, model.FormatPDF, "invoice_20260828_120000.pdf"},
		{model.DocText, model.FormatPDF, "text_document_20260828_120000.pdf"},
		{model.DocReceipt, model.FormatJPEG, "receipt_20260828_120000.txt"},
		{model.DocPhoto, model.FormatTIFF, "photo_scan_20260828_120000.txt"},
		{"unknown", model.FormatPNG, "scanned_document_20260828_120000.txt"},
	}

	for _, tc := range tests {
		got := Filename(tc.docType, tc.format, testTime)
		if got != tc.want {
			t.Errorf("Filename(%s, %s) = %q, want %q", tc.docType, tc.format, got, tc.want)
		}
	}
}

func TestSynthesizeText(t *testing.T) {
	g := newTestGenerator()
	settings := model.DefaultScanSettings()
	settings.OutputFormat = model.FormatJPEG

	path := filepath.Join(t.TempDir(), "receipt_20260828_120000.jpeg")
	result, err := g.Synthesize(model.DocReceipt, settings, path)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	// Non-PDF formats downgrade to a text facsimile.
	if !strings.HasSuffix(result.FilePath, ".txt") {
		t.Errorf("FilePath = %q, want .txt extension", result.FilePath)
	}
	if result.FileSize <= 0 {
		t.Errorf("FileSize = %d, want > 0", result.FileSize)
	}
	if result.Pages != 1 {
		t.Errorf("Pages = %d, want 1", result.Pages)
	}
	if result.Format != model.FormatJPEG {
		t.Errorf("Format = %q, want jpeg", result.Format)
	}
	if !result.ScannedAt.Equal(testTime) {
		t.Errorf("ScannedAt = %v, want %v", result.ScannedAt, testTime)
	}

	content, err := os.ReadFile(result.FilePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(content), "TECH STORE RECEIPT") {
		t.Error("receipt content missing expected header")
	}
	if !strings.Contains(string(content), "300 DPI") {
		t.Error("content missing resolution stamp")
	}
}

func TestSynthesizePDF(t *testing.T) {
	g := newTestGenerator()
	settings := model.DefaultScanSettings()

	path := filepath.Join(t.TempDir(), "invoice_20260828_120000.pdf")
	result, err := g.Synthesize(model.DocInvoice, settings, path)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if result.FilePath != path {
		t.Errorf("FilePath = %q, want %q", result.FilePath, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(content), "%PDF") {
		t.Errorf("file does not start with PDF magic, got %q", string(content[:min(8, len(content))]))
	}
	if result.FileSize != int64(len(content)) {
		t.Errorf("FileSize = %d, want %d", result.FileSize, len(content))
	}
}

func TestSynthesizeAllDocumentTypes(t *testing.T) {
	g := newTestGenerator()
	dir := t.TempDir()

	docTypes := []string{
		model.DocText, model.DocImage, model.DocMixed, model.DocPhoto,
		model.DocBusinessCard, model.DocReceipt, model.DocContract,
		model.DocInvoice,
	}

	for _, docType := range docTypes {
		settings := model.DefaultScanSettings()
		path := filepath.Join(dir, Filename(docType, settings.OutputFormat, testTime))
		result, err := g.Synthesize(docType, settings, path)
		if err != nil {
			t.Errorf("Synthesize(%s): %v", docType, err)
			continue
		}
		if result.FileSize <= 0 {
			t.Errorf("Synthesize(%s) produced empty file", docType)
		}
	}
}

func TestSynthesizeReportsWriteFailure(t *testing.T) {
	g := newTestGenerator()
	settings := model.DefaultScanSettings()
	settings.OutputFormat = model.FormatPNG

	// Target inside a directory that does not exist.
	path := filepath.Join(t.TempDir(), "missing", "scan.png")
	_, err := g.Synthesize(model.DocText, settings, path)
	if err == nil {
		t.Fatal("expected write error, got nil")
	}
	if !strings.Contains(err.Error(), "write text file") {
		t.Errorf("error = %v, want write text file detail", err)
	}
}
