// Package archive persists terminal jobs to SQLite for history and
// aggregate statistics. It is write-behind: live job state lives in the
// in-memory store and the engine never reads the archive.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scanhub/scanhub/internal/model"

	_ "modernc.org/sqlite"
)

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS job_history (
    id            TEXT PRIMARY KEY,
    device_id     TEXT NOT NULL,
    document_type TEXT NOT NULL,
    status        TEXT NOT NULL,
    error         TEXT,
    output_format TEXT NOT NULL,
    resolution    INTEGER NOT NULL,
    file_path     TEXT,
    file_size     INTEGER,
    pages         INTEGER,
    created_at    DATETIME NOT NULL,
    completed_at  DATETIME,
    duration_ms   INTEGER
)`

// ErrNotTerminal is returned when a non-terminal job is offered for archival.
var ErrNotTerminal = errors.New("job is not in a terminal state")

// Entry is one archived job row.
type Entry struct {
	ID           string     `json:"id"`
	DeviceID     string     `json:"device_id"`
	DocumentType string     `json:"document_type"`
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	OutputFormat string     `json:"output_format"`
	Resolution   int        `json:"resolution"`
	FilePath     string     `json:"file_path,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
	Pages        int        `json:"pages,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMS   int64      `json:"duration_ms"`
}

// Stats holds aggregate history statistics.
type Stats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByType   map[string]int `json:"count_by_type"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Archive implements the history store using SQLite.
type Archive struct {
	db *sql.DB
}

// Open opens the SQLite database at dbPath and runs migrations.
func Open(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createHistoryTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create job_history table: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close closes the underlying database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Record inserts a terminal job into the history. Recording the same job
// twice keeps the latest row, so a cancel racing the engine's own terminal
// write stays a single entry.
func (a *Archive) Record(ctx context.Context, j model.Job) error {
	if j.Active() {
		return ErrNotTerminal
	}

	var (
		filePath string
		fileSize int64
		pages    int
	)
	if j.Result != nil {
		filePath = j.Result.FilePath
		fileSize = j.Result.FileSize
		pages = j.Result.Pages
	}

	var durationMS int64
	if j.CompletedAt != nil {
		durationMS = j.CompletedAt.Sub(j.CreatedAt).Milliseconds()
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO job_history (
			id, device_id, document_type, status, error, output_format,
			resolution, file_path, file_size, pages, created_at,
			completed_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.DeviceID, j.DocumentType, j.Status, j.Error,
		j.Settings.OutputFormat, j.Settings.Resolution,
		filePath, fileSize, pages, j.CreatedAt, j.CompletedAt, durationMS,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// List returns a paginated history ordered by created_at DESC, along with
// the total number of archived jobs.
func (a *Archive) List(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_history").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, device_id, document_type, status, error, output_format,
			resolution, file_path, file_size, pages, created_at,
			completed_at, duration_ms
		FROM job_history ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.DeviceID, &e.DocumentType, &e.Status, &e.Error,
			&e.OutputFormat, &e.Resolution, &e.FilePath, &e.FileSize,
			&e.Pages, &e.CreatedAt, &e.CompletedAt, &e.DurationMS,
		); err != nil {
			return nil, 0, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate history: %w", err)
	}

	return entries, total, nil
}

// GetStats returns aggregate statistics over the archived history.
func (a *Archive) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		CountByStatus: make(map[string]int),
		CountByType:   make(map[string]int),
	}

	rows, err := a.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM job_history GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	typeRows, err := a.db.QueryContext(ctx,
		"SELECT document_type, COUNT(*) FROM job_history GROUP BY document_type")
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var docType string
		var n int
		if err := typeRows.Scan(&docType, &n); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		stats.CountByType[docType] = n
	}
	if err := typeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type counts: %w", err)
	}

	var avg sql.NullFloat64
	if err := a.db.QueryRowContext(ctx,
		"SELECT AVG(duration_ms) FROM job_history WHERE completed_at IS NOT NULL",
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	return stats, nil
}
