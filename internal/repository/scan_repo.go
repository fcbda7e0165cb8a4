package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"harvest_monitor/internal/models"

	"github.com/google/uuid"
)

type ScanSQLite struct {
	db *sql.DB
}

func NewScanSQLite(db *sql.DB) *ScanSQLite { return &ScanSQLite{db: db} }

var _ ScanRepo = (*ScanSQLite)(nil)

const (
	insertScanSQL = `
		INSERT INTO scans (id, taken_at, scan_date, trigger_kind, reading, image_mime, image, analysis)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectScanColumns = `SELECT id, taken_at, scan_date, trigger_kind, reading, image_mime, image, analysis FROM scans`

	selectScanColumnsNoImage = `SELECT id, taken_at, scan_date, trigger_kind, reading, image_mime, NULL, analysis FROM scans`
)

// Append inserts a scan. Missing ID, timestamp or date are filled in.
func (r *ScanSQLite) Append(ctx context.Context, rec models.ScanRecord) error {
	rec = withDefaults(rec)
	row, err := toScanRow(rec)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, insertScanSQL,
		row.ID,
		row.TakenAt,
		row.ScanDate,
		row.TriggerKind,
		row.Reading,
		row.ImageMime,
		row.Image,
		row.Analysis,
	)
	if err != nil {
		return fmt.Errorf("insert scan %s: %w", row.ID, err)
	}
	return nil
}

// List returns scans newest first, optionally for one date.
func (r *ScanSQLite) List(ctx context.Context, q ScanQuery) ([]models.ScanRecord, error) {
	var (
		conds []string
		args  []any
	)
	if d := strings.TrimSpace(q.Date); d != "" {
		conds = append(conds, "scan_date = ?")
		args = append(args, d)
	}

	query := selectScanColumns
	if q.OmitImageData {
		query = selectScanColumnsNoImage
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY taken_at DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.ScanRecord, 0, 32)
	for rows.Next() {
		row, err := scanSQLRow(rows)
		if err != nil {
			return nil, err
		}
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one scan by id.
func (r *ScanSQLite) Get(ctx context.Context, id string) (models.ScanRecord, error) {
	row, err := scanSQLRow(r.db.QueryRowContext(ctx, selectScanColumns+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ScanRecord{}, ErrScanNotFound
		}
		return models.ScanRecord{}, err
	}
	return row.toRecord()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLRow(s rowScanner) (scanRow, error) {
	var (
		row      scanRow
		mime     sql.NullString
		analysis sql.NullString
	)
	if err := s.Scan(
		&row.ID,
		&row.TakenAt,
		&row.ScanDate,
		&row.TriggerKind,
		&row.Reading,
		&mime,
		&row.Image,
		&analysis,
	); err != nil {
		return scanRow{}, err
	}
	if mime.Valid {
		row.ImageMime = &mime.String
	}
	if analysis.Valid {
		row.Analysis = &analysis.String
	}
	return row, nil
}

// withDefaults fills the identity fields a caller may leave empty.
func withDefaults(rec models.ScanRecord) models.ScanRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	} else {
		rec.Timestamp = rec.Timestamp.UTC()
	}
	if rec.Date == "" {
		rec.Date = rec.Timestamp.Format(models.DateLayout)
	}
	if rec.Trigger == "" {
		rec.Trigger = models.TriggerManual
	}
	return rec
}
