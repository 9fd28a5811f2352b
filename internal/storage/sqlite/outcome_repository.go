package sqlite

import (
	"database/sql"
	"time"

	"github.com/datfetch/datfetch/internal/storage"
)

// OutcomeRepository persists and queries download outcomes.
type OutcomeRepository struct {
	db *sql.DB
}

func NewOutcomeRepository(dbConn *sql.DB) *OutcomeRepository {
	return &OutcomeRepository{db: dbConn}
}

// RecordOutcome appends one outcome row. Rows are append-only; a run never
// rewrites history.
func (r *OutcomeRepository) RecordOutcome(record storage.OutcomeRecord) error {
	recordedAt := record.RecordedAt
	if recordedAt == "" {
		recordedAt = time.Now().Format(time.RFC3339)
	}

	_, err := r.db.Exec(`
		INSERT INTO outcomes (run_id, title, file_path, bytes, elapsed_ms, status, error_kind, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.RunID, record.Title, record.FilePath, record.Bytes, record.ElapsedMS, record.Status, record.ErrorKind, recordedAt)

	return err
}

// GetRunOutcomes returns every outcome of one run in insertion order.
func (r *OutcomeRepository) GetRunOutcomes(runID string) ([]storage.OutcomeRecord, error) {
	rows, err := r.db.Query(`
		SELECT run_id, title, file_path, bytes, elapsed_ms, status, error_kind, recorded_at
		FROM outcomes WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

// GetRecentOutcomes returns the latest outcomes across runs, newest first.
func (r *OutcomeRepository) GetRecentOutcomes(limit int) ([]storage.OutcomeRecord, error) {
	rows, err := r.db.Query(`
		SELECT run_id, title, file_path, bytes, elapsed_ms, status, error_kind, recorded_at
		FROM outcomes ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

func scanOutcomes(rows *sql.Rows) ([]storage.OutcomeRecord, error) {
	var outcomes []storage.OutcomeRecord

	for rows.Next() {
		var record storage.OutcomeRecord

		var errorKind sql.NullString

		err := rows.Scan(&record.RunID, &record.Title, &record.FilePath, &record.Bytes,
			&record.ElapsedMS, &record.Status, &errorKind, &record.RecordedAt)
		if err != nil {
			return nil, err
		}

		if errorKind.Valid {
			record.ErrorKind = errorKind.String
		}

		outcomes = append(outcomes, record)
	}

	return outcomes, rows.Err()
}
