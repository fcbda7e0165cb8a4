package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"harvest_monitor/internal/logger"
	"harvest_monitor/internal/models"
)

// HistoryWatcher is the change stream the notification projection follows.
type HistoryWatcher interface {
	Watch(ctx context.Context) (<-chan []models.ScanRecord, error)
}

// NotificationService keeps the dashboard's notification list in sync with
// the history. Every delivery replaces the projection wholesale.
type NotificationService struct {
	history HistoryWatcher
	log     *logger.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	mu      sync.RWMutex
	records []models.ScanRecord
	changes *hub[struct{}]
}

const (
	watchMinBackoff = time.Second
	watchMaxBackoff = 30 * time.Second
)

var errWatchEnded = errors.New("history watch ended")

func NewNotificationService(history HistoryWatcher, log *logger.Logger) *NotificationService {
	if log == nil {
		log = logger.Nop()
	}
	return &NotificationService{
		history:    history,
		log:        log,
		minBackoff: watchMinBackoff,
		maxBackoff: watchMaxBackoff,
		changes:    newHub[struct{}](1),
	}
}

// Run follows the history until ctx is done. A failed or broken watch is
// retried with capped exponential backoff.
func (s *NotificationService) Run(ctx context.Context) {
	backoff := s.minBackoff
	for {
		updates, err := s.history.Watch(ctx)
		if err == nil {
			backoff = s.minBackoff
			for set := range updates {
				s.replace(set)
			}
			err = errWatchEnded
		}
		if ctx.Err() != nil {
			return
		}
		s.log.Warnw("notifications_watch_failed", "err", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

func (s *NotificationService) replace(set []models.ScanRecord) {
	sorted := SortNewestFirst(set)
	s.mu.Lock()
	s.records = sorted
	s.mu.Unlock()
	s.log.Debugw("notifications_refreshed", "count", len(sorted))
	s.changes.Publish(struct{}{})
}

// View returns the notifications of one date. An empty date selects the
// newest date present.
func (s *NotificationService) View(date string) (models.NotificationView, error) {
	if date != "" && !validDate(date) {
		return models.NotificationView{}, ErrInvalidDate
	}

	s.mu.RLock()
	records := s.records
	s.mu.RUnlock()

	dates := DistinctDates(records)
	if date == "" && len(dates) > 0 {
		date = dates[0]
	}
	view := models.NotificationView{Date: date, Dates: dates, Items: []models.Notification{}}
	for _, rec := range FilterByDate(records, date) {
		view.Items = append(view.Items, toNotification(rec))
	}
	return view, nil
}

func (s *NotificationService) Dates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return DistinctDates(s.records)
}

// Changes signals after every projection refresh.
func (s *NotificationService) Changes(ctx context.Context) <-chan struct{} {
	return s.changes.Subscribe(ctx)
}

func toNotification(rec models.ScanRecord) models.Notification {
	return models.Notification{
		ID:        rec.ID,
		Timestamp: rec.Timestamp,
		Date:      rec.Date,
		Trigger:   rec.Trigger,
		Message:   FormatMessage(rec),
		Reading:   rec.Reading,
		HasImage:  rec.Image != nil,
		Analysis:  rec.Analysis,
	}
}

// SortNewestFirst returns a copy of records ordered by timestamp descending.
func SortNewestFirst(records []models.ScanRecord) []models.ScanRecord {
	out := make([]models.ScanRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// DistinctDates lists the dates present, newest first.
func DistinctDates(records []models.ScanRecord) []string {
	seen := make(map[string]struct{}, len(records))
	dates := make([]string, 0)
	for _, r := range records {
		if _, ok := seen[r.Date]; ok || r.Date == "" {
			continue
		}
		seen[r.Date] = struct{}{}
		dates = append(dates, r.Date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}

// FilterByDate keeps records whose date equals date exactly, preserving order.
func FilterByDate(records []models.ScanRecord, date string) []models.ScanRecord {
	out := make([]models.ScanRecord, 0)
	for _, r := range records {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out
}

// FormatMessage renders the one-line notification text of a scan.
func FormatMessage(rec models.ScanRecord) string {
	r := rec.Reading
	var b strings.Builder
	fmt.Fprintf(&b, "Soil scan complete: N: %.1f%%, P: %.1f%%, K: %.1f%%, Moisture: %.1f%%",
		r.Nitrogen.Value, r.Phosphorus.Value, r.Potassium.Value, r.Moisture.Average)

	if a := rec.Analysis; a != nil {
		if a.GrowthStage != "" {
			fmt.Fprintf(&b, " | Stage: %s", a.GrowthStage)
		}
		if ready, ok := a.IsHarvestReady(); ok {
			if ready {
				b.WriteString(" | Ready to harvest")
			} else {
				b.WriteString(" | Not ready")
			}
		}
	}
	return b.String()
}

func validDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}
