package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"harvest_monitor/internal/models"
)

// scanRow is the storage shape shared by both engines.
type scanRow struct {
	ID          string  `gorm:"column:id;primaryKey;type:text"`
	TakenAt     int64   `gorm:"column:taken_at;not null;index:idx_scans_date,priority:2"`
	ScanDate    string  `gorm:"column:scan_date;not null;index:idx_scans_date,priority:1"`
	TriggerKind string  `gorm:"column:trigger_kind;not null"`
	Reading     string  `gorm:"column:reading;type:text;not null"`
	ImageMime   *string `gorm:"column:image_mime"`
	Image       []byte  `gorm:"column:image;type:bytea"`
	Analysis    *string `gorm:"column:analysis;type:text"`
}

func (scanRow) TableName() string { return "scans" }

func toScanRow(rec models.ScanRecord) (scanRow, error) {
	reading, err := json.Marshal(rec.Reading)
	if err != nil {
		return scanRow{}, fmt.Errorf("marshal reading: %w", err)
	}
	row := scanRow{
		ID:          rec.ID,
		TakenAt:     rec.Timestamp.UnixNano(),
		ScanDate:    rec.Date,
		TriggerKind: string(rec.Trigger),
		Reading:     string(reading),
	}
	if rec.Image != nil {
		mime := rec.Image.MimeType
		row.ImageMime = &mime
		row.Image = rec.Image.Data
		if row.Image == nil {
			row.Image = []byte{}
		}
	}
	if rec.Analysis != nil {
		b, err := json.Marshal(rec.Analysis)
		if err != nil {
			return scanRow{}, fmt.Errorf("marshal analysis: %w", err)
		}
		s := string(b)
		row.Analysis = &s
	}
	return row, nil
}

func (r scanRow) toRecord() (models.ScanRecord, error) {
	rec := models.ScanRecord{
		ID:        r.ID,
		Timestamp: time.Unix(0, r.TakenAt).UTC(),
		Date:      r.ScanDate,
		Trigger:   models.ScanTrigger(r.TriggerKind),
	}
	if err := json.Unmarshal([]byte(r.Reading), &rec.Reading); err != nil {
		return models.ScanRecord{}, fmt.Errorf("scan %s: decode reading: %w", r.ID, err)
	}
	if r.ImageMime != nil {
		data := r.Image
		if data == nil {
			data = []byte{}
		}
		rec.Image = &models.EncodedImage{MimeType: *r.ImageMime, Data: data}
	}
	if r.Analysis != nil && *r.Analysis != "" {
		var a models.AnalysisResult
		if err := json.Unmarshal([]byte(*r.Analysis), &a); err != nil {
			return models.ScanRecord{}, fmt.Errorf("scan %s: decode analysis: %w", r.ID, err)
		}
		rec.Analysis = &a
	}
	return rec, nil
}
