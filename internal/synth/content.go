package synth

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/scanhub/scanhub/internal/model"
)

// textContent renders the simulated document body for a document type.
// Reference numbers are random but cosmetic; they never affect control flow.
func textContent(docType string, settings model.ScanSettings, now time.Time) string {
	header := fmt.Sprintf("[Scanned at %d DPI, %d%% quality, %s mode]\n\n",
		settings.Resolution, settings.Quality, colorModeLabel(settings.ColorMode))

	var b strings.Builder
	b.WriteString(header)

	switch docType {
	case model.DocText:
		fmt.Fprintf(&b, `MEMORANDUM

TO: Development Team
FROM: Project Manager
DATE: %s
RE: Scan pipeline verification

This document verifies the scan simulation pipeline end to end.

Settings used:
- Resolution: %d DPI
- Color mode: %s
- Paper size: %s
- Output format: %s
- Quality: %d%%
- Duplex: %s
`,
			now.Format("2006-01-02"), settings.Resolution, settings.ColorMode,
			settings.PaperSize, settings.OutputFormat, settings.Quality,
			yesNo(settings.Duplex))

	case model.DocInvoice:
		fmt.Fprintf(&b, `INVOICE

Invoice #: INV-%d
Date: %s
Due date: %s

BILL TO:
Scanhub Test Customer
123 Business Street
Technology City, TC 12345

DESCRIPTION                    QTY    RATE      AMOUNT
======================================================
Software License                1    $299.00   $299.00
Technical Support (5 hrs)       5     $50.00   $250.00
Implementation Services         1    $150.00   $150.00
======================================================
                          SUBTOTAL:   $699.00
                          TAX (8.5%%):  $59.42
                          TOTAL:      $758.42

Payment terms: Net 30 days
`,
			10000+rand.Intn(90000), now.Format("2006-01-02"),
			now.AddDate(0, 0, 30).Format("2006-01-02"))

	case model.DocContract:
		fmt.Fprintf(&b, `SOFTWARE LICENSE AGREEMENT

This Software License Agreement ("Agreement") is entered into between
the Licensor and the end user ("Licensee") effective as of %s.

1. GRANT OF LICENSE
Licensor hereby grants to Licensee a non-exclusive, non-transferable
license to use the software under the terms set forth herein.

2. RESTRICTIONS
Licensee may not modify, reverse engineer, or redistribute the software.

3. TERMINATION
This Agreement terminates automatically upon breach of any term.

Signature: ________________________________
Date:      ________________________________
`,
			now.Format("January 2, 2006"))

	case model.DocReceipt:
		fmt.Fprintf(&b, `        TECH STORE RECEIPT
    123 Technology Avenue
      Phone: (555) 123-4567
=============================

Date: %s
Time: %s
Transaction #: TX-%d

Software License           $299.00
Extended Warranty           $49.99
Installation Service        $75.00
-----------------------------
Subtotal:                  $423.99
Tax (8.75%%):                $37.10
TOTAL:                     $461.09

THANK YOU FOR YOUR PURCHASE!
`,
			now.Format("2006-01-02"), now.Format("15:04:05"),
			100000+rand.Intn(900000))

	case model.DocBusinessCard:
		b.WriteString(`BUSINESS CARD
=====================================
           JOHN SMITH
        Senior Developer

   john.smith@example.com
   +1 (555) 123-4567
=====================================
`)

	case model.DocPhoto:
		fmt.Fprintf(&b, `PHOTO SCAN METADATA

Scanned: %s
Resolution: %d DPI
Color mode: %s
Estimated size: 4x6 inches
File format: %s

This represents a scanned photograph. A real implementation would
contain the photographed content with full color reproduction.
`,
			now.Format("2006-01-02 15:04:05"), settings.Resolution,
			settings.ColorMode, settings.OutputFormat)

	default:
		fmt.Fprintf(&b, `SCANNED DOCUMENT

Document type: %s
Scan date: %s

This is a simulated scan. In a real scanning scenario this would
contain the content of the physical document.

Scan parameters:
- Resolution: %d DPI
- Color mode: %s
- Paper size: %s
- Quality: %d%%
- Duplex: %s
- Output format: %s
`,
			docType, now.Format("2006-01-02 15:04:05"), settings.Resolution,
			settings.ColorMode, settings.PaperSize, settings.Quality,
			yesNo(settings.Duplex), settings.OutputFormat)
	}

	return b.String()
}

func colorModeLabel(mode string) string {
	switch mode {
	case model.ColorBW:
		return "B&W"
	case model.ColorGrayscale:
		return "Grayscale"
	default:
		return "Color"
	}
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
