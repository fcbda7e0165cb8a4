package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"harvest_monitor/internal/models"

	"gorm.io/gorm"
)

// ScanGorm stores scans through gorm; used with the postgres engine.
type ScanGorm struct {
	db *gorm.DB
}

func NewScanGorm(db *gorm.DB) *ScanGorm { return &ScanGorm{db: db} }

var _ ScanRepo = (*ScanGorm)(nil)

func (r *ScanGorm) Append(ctx context.Context, rec models.ScanRecord) error {
	row, err := toScanRow(withDefaults(rec))
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert scan %s: %w", row.ID, err)
	}
	return nil
}

func (r *ScanGorm) List(ctx context.Context, q ScanQuery) ([]models.ScanRecord, error) {
	tx := r.db.WithContext(ctx).Model(&scanRow{})
	if d := strings.TrimSpace(q.Date); d != "" {
		tx = tx.Where("scan_date = ?", d)
	}
	tx = tx.Order("taken_at DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.OmitImageData {
		tx = tx.Omit("image")
	}

	var rows []scanRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.ScanRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *ScanGorm) Get(ctx context.Context, id string) (models.ScanRecord, error) {
	var row scanRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ScanRecord{}, ErrScanNotFound
		}
		return models.ScanRecord{}, err
	}
	return row.toRecord()
}
