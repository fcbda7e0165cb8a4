package service

import (
	"errors"
	"time"

	"harvest_monitor/internal/models"
)

var ErrNoReading = errors.New("no sensor reading received yet")

// ReadingService exposes the latest sensor reading held by the feed.
type ReadingService struct {
	state ReadingSource
}

func NewReadingService(state ReadingSource) *ReadingService {
	return &ReadingService{state: state}
}

// GetCurrent returns the latest reading with timestamps normalized to UTC.
func (s *ReadingService) GetCurrent() (models.Reading, error) {
	r, ok := s.state.Current()
	if !ok {
		return models.Reading{}, ErrNoReading
	}
	r.CapturedAt = toUTC(r.CapturedAt)
	return r, nil
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
