package model

import "time"

// Job status constants.
const (
	StatusPending    = "pending"
	StatusScanning   = "scanning"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Document type constants.
const (
	DocText         = "text"
	DocImage        = "image"
	DocMixed        = "mixed"
	DocPhoto        = "photo"
	DocBusinessCard = "business_card"
	DocReceipt      = "receipt"
	DocContract     = "contract"
	DocInvoice      = "invoice"
)

// Output format constants.
const (
	FormatPDF  = "pdf"
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatTIFF = "tiff"
)

// validTransitions maps each status to the set of statuses it may transition to.
// Processing is a reserved intermediate stage between scanning and the
// terminal statuses; the engine currently skips it.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusScanning:  true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusScanning: {
		StatusProcessing: true,
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether a status admits no further transitions.
func Terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ScanSettings is the configuration a job scans with.
type ScanSettings struct {
	Resolution   int    `json:"resolution"`
	ColorMode    string `json:"color_mode"`
	PaperSize    string `json:"paper_size"`
	Duplex       bool   `json:"duplex"`
	OutputFormat string `json:"output_format"`
	Quality      int    `json:"quality"` // 1-100
}

// DefaultScanSettings returns the settings used when a request leaves them out.
func DefaultScanSettings() ScanSettings {
	return ScanSettings{
		Resolution:   300,
		ColorMode:    ColorFull,
		PaperSize:    PaperA4,
		Duplex:       false,
		OutputFormat: FormatPDF,
		Quality:      85,
	}
}

// ScanResult describes the artifact produced for a completed job.
type ScanResult struct {
	FilePath   string    `json:"file_path"`
	FileSize   int64     `json:"file_size"`
	Pages      int       `json:"pages"`
	Resolution int       `json:"resolution"`
	ColorMode  string    `json:"color_mode"`
	Format     string    `json:"format"`
	ScannedAt  time.Time `json:"scanned_at"`
}

// Job is a unit of work requesting an artifact be produced via a specific
// device and configuration. Progress runs 0.0 to 1.0 and is monotonically
// non-decreasing while the job is scanning.
type Job struct {
	ID           string       `json:"id"`
	DeviceID     string       `json:"device_id"`
	DocumentType string       `json:"document_type"`
	Settings     ScanSettings `json:"settings"`
	Status       string       `json:"status"`
	Error        string       `json:"error,omitempty"`
	Progress     float64      `json:"progress"`
	CreatedAt    time.Time    `json:"created_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	Result       *ScanResult  `json:"result,omitempty"`
}

// NewJob creates a pending job against the given device.
func NewJob(deviceID, documentType string, settings ScanSettings) Job {
	return Job{
		ID:           NewID(),
		DeviceID:     deviceID,
		DocumentType: documentType,
		Settings:     settings,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
}

// Active reports whether the job is in a non-terminal state.
func (j Job) Active() bool {
	return !Terminal(j.Status)
}
