package repository

import (
	"context"
	"errors"

	"harvest_monitor/internal/models"
)

var (
	ErrScanNotFound = errors.New("scan not found")
	ErrUserExists   = errors.New("username already taken")
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// ScanQuery narrows a history listing. Zero values mean no filter.
type ScanQuery struct {
	Date  string // YYYY-MM-DD
	Limit int
	// OmitImageData leaves Image.Data empty; the mime type is still set when
	// the scan has an image.
	OmitImageData bool
}

// ScanRepo is the append-only scan log. List returns newest first.
type ScanRepo interface {
	Append(ctx context.Context, rec models.ScanRecord) error
	List(ctx context.Context, q ScanQuery) ([]models.ScanRecord, error)
	Get(ctx context.Context, id string) (models.ScanRecord, error)
}

type Repository struct {
	ScanRepo ScanRepo
	Auth     Authorization
}
