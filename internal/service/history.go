package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"harvest_monitor/internal/logger"
	"harvest_monitor/internal/models"
	"harvest_monitor/internal/repository"
)

var ErrInvalidDate = errors.New("invalid date: expected YYYY-MM-DD")

// watchQuery loads the full history for watchers. Image bytes stay in the
// store and are served per scan.
var watchQuery = repository.ScanQuery{OmitImageData: true}

// HistoryService is the append-only scan history plus its change stream.
// Watchers always receive the complete newest-first record set, never a diff.
type HistoryService struct {
	repo repository.ScanRepo
	log  *logger.Logger

	// mu orders snapshots with subscriptions so a watcher never misses an
	// append that happens while it subscribes.
	mu       sync.Mutex
	watchers *hub[[]models.ScanRecord]
}

func NewHistoryService(repo repository.ScanRepo, log *logger.Logger) *HistoryService {
	if log == nil {
		log = logger.Nop()
	}
	return &HistoryService{
		repo:     repo,
		log:      log,
		watchers: newHub[[]models.ScanRecord](1),
	}
}

// Append persists rec and then pushes the updated set to every watcher.
// A failed refresh after a successful insert is logged, not returned: the
// record is durable and the next append re-broadcasts everything.
func (s *HistoryService) Append(ctx context.Context, rec models.ScanRecord) error {
	if err := s.repo.Append(ctx, rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchers.Len() == 0 {
		return nil
	}
	all, err := s.repo.List(ctx, watchQuery)
	if err != nil {
		s.log.Errorw("history_refresh_failed", "scan_id", rec.ID, "error", err)
		return nil
	}
	s.watchers.Publish(all)
	return nil
}

// Watch delivers the current set first and then the full set after every
// change until ctx is done.
func (s *HistoryService) Watch(ctx context.Context) (<-chan []models.ScanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.repo.List(ctx, watchQuery)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return s.watchers.Subscribe(ctx, all), nil
}

// List returns records newest first, optionally restricted to one date.
// Image bytes are left out; Get returns the full record.
func (s *HistoryService) List(ctx context.Context, date string, limit int) ([]models.ScanRecord, error) {
	if date != "" && !validDate(date) {
		return nil, ErrInvalidDate
	}
	return s.repo.List(ctx, repository.ScanQuery{Date: date, Limit: limit, OmitImageData: true})
}

func (s *HistoryService) Get(ctx context.Context, id string) (models.ScanRecord, error) {
	return s.repo.Get(ctx, id)
}
