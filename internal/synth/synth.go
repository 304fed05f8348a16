// Package synth produces the output artifact for a completed scan job.
// PDF output is rendered with fpdf; every other format is downgraded to a
// plain-text facsimile of the scanned content.
package synth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/scanhub/scanhub/internal/model"
)

// Synthesizer turns a finished scan into a result descriptor on disk.
// Implementations must be deterministic in their success/failure path;
// randomness inside generated content is cosmetic only.
type Synthesizer interface {
	Synthesize(docType string, settings model.ScanSettings, outputPath string) (*model.ScanResult, error)
}

// Generator is the default Synthesizer.
type Generator struct {
	now func() time.Time
}

// NewGenerator creates a Generator using the wall clock.
func NewGenerator() *Generator {
	return &Generator{now: func() time.Time { return time.Now().UTC() }}
}

// Filename builds the artifact filename for a document type and format.
// Non-PDF formats carry a .txt extension because their content is a text
// facsimile.
func Filename(docType, format string, ts time.Time) string {
	prefix := map[string]string{
		model.DocText:         "text_document",
		model.DocImage:        "scanned_image",
		model.DocMixed:        "mixed_content",
		model.DocPhoto:        "photo_scan",
		model.DocBusinessCard: "business_card",
		model.DocReceipt:      "receipt",
		model.DocContract:     "contract",
		model.DocInvoice:      "invoice",
	}[docType]
	if prefix == "" {
		prefix = "scanned_document"
	}

	ext := "txt"
	if format == model.FormatPDF {
		ext = "pdf"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, ts.Format("20060102_150405"), ext)
}

// Synthesize writes the artifact to outputPath and returns its descriptor.
// I/O failures are returned with enough detail for the job's failure reason.
func (g *Generator) Synthesize(docType string, settings model.ScanSettings, outputPath string) (*model.ScanResult, error) {
	var err error
	if settings.OutputFormat == model.FormatPDF {
		err = g.writePDF(docType, settings, outputPath)
	} else {
		outputPath = replaceExt(outputPath, ".txt")
		err = g.writeText(docType, settings, outputPath)
	}
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("stat generated file: %w", err)
	}

	return &model.ScanResult{
		FilePath:   outputPath,
		FileSize:   info.Size(),
		Pages:      1,
		Resolution: settings.Resolution,
		ColorMode:  settings.ColorMode,
		Format:     settings.OutputFormat,
		ScannedAt:  g.now(),
	}, nil
}

func (g *Generator) writeText(docType string, settings model.ScanSettings, path string) error {
	content := textContent(docType, settings, g.now())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write text file: %w", err)
	}
	return nil
}

func (g *Generator) writePDF(docType string, settings model.ScanSettings, path string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Times", "B", 18)
	pdf.Cell(0, 10, pdfTitle(docType))
	pdf.Ln(14)

	pdf.SetFont("Times", "", 10)
	for _, line := range strings.Split(textContent(docType, settings, g.now()), "\n") {
		pdf.Cell(0, 5, line)
		pdf.Ln(5)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf file: %w", err)
	}
	return nil
}

func pdfTitle(docType string) string {
	switch docType {
	case model.DocInvoice:
		return "INVOICE"
	case model.DocContract:
		return "SOFTWARE LICENSE AGREEMENT"
	case model.DocReceipt:
		return "TECH STORE RECEIPT"
	case model.DocBusinessCard:
		return "BUSINESS CARD"
	case model.DocText:
		return "MEMORANDUM"
	default:
		return "SCANNED DOCUMENT"
	}
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
