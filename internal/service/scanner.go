package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"harvest_monitor/internal/logger"
	"harvest_monitor/internal/models"

	"github.com/google/uuid"
)

var (
	ErrScanInProgress    = errors.New("a scan is already in progress")
	ErrCaptureFailed     = errors.New("image capture failed")
	ErrAnalysisFailed    = errors.New("image analysis failed")
	ErrPersistenceFailed = errors.New("saving scan failed")
)

const (
	DefaultAutoInterval = time.Hour
	countdownTick       = time.Second
)

// Capturer takes one still image from the device camera.
type Capturer interface {
	Capture(ctx context.Context) (models.EncodedImage, error)
}

// Analyzer judges harvest readiness from an image and the sensor context.
type Analyzer interface {
	Analyze(ctx context.Context, img models.EncodedImage, reading models.Reading) (models.AnalysisResult, error)
}

// ReadingSource is the last known sensor reading.
type ReadingSource interface {
	Current() (models.Reading, bool)
}

// Recorder persists completed scans.
type Recorder interface {
	Append(ctx context.Context, rec models.ScanRecord) error
}

type ScannerConfig struct {
	Interval time.Duration
	Location *time.Location
}

// ScanService runs scans one at a time and drives the auto-scan timer.
//
// Auto-scan phases: disabled -> armed(next run) -> running -> armed ...
// A fire that finds the gate held is a finished run and re-arms like any
// other. Disabling cancels the pending timer but never aborts a running scan.
type ScanService struct {
	capturer Capturer
	analyzer Analyzer
	readings ReadingSource
	history  Recorder
	log      *logger.Logger

	interval time.Duration
	loc      *time.Location
	now      func() time.Time

	gate   chan struct{}
	status *hub[models.StatusEvent]
	auto   *hub[models.AutoScanState]

	mu        sync.Mutex
	enabled   bool
	running   bool
	nextRunAt time.Time
	timer     *time.Timer
	gen       uint64
	runs      sync.WaitGroup
}

func NewScanService(c Capturer, a Analyzer, r ReadingSource, h Recorder, cfg ScannerConfig, log *logger.Logger) *ScanService {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultAutoInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ScanService{
		capturer: c,
		analyzer: a,
		readings: r,
		history:  h,
		log:      log,
		interval: cfg.Interval,
		loc:      cfg.Location,
		now:      time.Now,
		gate:     make(chan struct{}, 1),
		status:   newHub[models.StatusEvent](16),
		auto:     newHub[models.AutoScanState](1),
	}
}

// acquire takes the in-flight gate without waiting.
func (s *ScanService) acquire() (release func(), ok bool) {
	select {
	case s.gate <- struct{}{}:
		return func() { <-s.gate }, true
	default:
		return nil, false
	}
}

func (s *ScanService) InFlight() bool { return len(s.gate) > 0 }

// Scan snapshots the current reading and runs a full scan with it. Before
// the feed has delivered anything an empty reading stamped now is used.
func (s *ScanService) Scan(ctx context.Context, trigger models.ScanTrigger) (models.ScanRecord, error) {
	reading, ok := s.readings.Current()
	if !ok {
		reading = models.Reading{CapturedAt: s.now().UTC()}
	}
	return s.RunScan(ctx, reading, trigger)
}

// RunScan captures, analyzes and records one scan. Analysis failure is not
// fatal: the record is stored without an analysis. Nothing is stored when the
// capture fails or another scan holds the gate.
func (s *ScanService) RunScan(ctx context.Context, reading models.Reading, trigger models.ScanTrigger) (models.ScanRecord, error) {
	release, ok := s.acquire()
	if !ok {
		s.emit(models.StatusEvent{Type: models.StatusScanRejected, Trigger: trigger, Message: "Scan skipped: another scan is in progress", Error: ErrScanInProgress.Error()})
		return models.ScanRecord{}, ErrScanInProgress
	}
	defer release()

	s.emit(models.StatusEvent{Type: models.StatusScanStarted, Trigger: trigger, Message: "Capturing image"})

	img, err := s.capturer.Capture(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCaptureFailed, err)
		s.log.Errorw("scan_capture_failed", "trigger", trigger, "error", err)
		s.emit(models.StatusEvent{Type: models.StatusScanFailed, Trigger: trigger, Message: "Failed to capture image", Error: err.Error()})
		return models.ScanRecord{}, err
	}

	analysis, err := s.analyze(ctx, img, reading)
	if err != nil {
		s.log.Warnw("scan_analysis_failed", "trigger", trigger, "error", err)
		s.emit(models.StatusEvent{Type: models.StatusAnalysisFailed, Trigger: trigger, Message: "Analysis unavailable, saving scan without it", Error: err.Error()})
	}

	now := s.now().UTC()
	rec := models.ScanRecord{
		ID:        uuid.NewString(),
		Timestamp: now,
		Date:      now.In(s.loc).Format(models.DateLayout),
		Trigger:   trigger,
		Reading:   reading,
		Image:     &img,
		Analysis:  analysis,
	}
	// A captured scan is kept even if the caller went away meanwhile.
	if err := s.history.Append(context.WithoutCancel(ctx), rec); err != nil {
		err = fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
		s.log.Errorw("scan_persist_failed", "scan_id", rec.ID, "trigger", trigger, "error", err)
		s.emit(models.StatusEvent{Type: models.StatusScanFailed, Trigger: trigger, ScanID: rec.ID, Message: "Failed to save scan", Error: err.Error()})
		return models.ScanRecord{}, err
	}

	s.log.Infow("scan_completed", "scan_id", rec.ID, "trigger", trigger, "analyzed", analysis != nil)
	s.emit(models.StatusEvent{Type: models.StatusScanCompleted, Trigger: trigger, ScanID: rec.ID, Message: FormatMessage(rec)})
	return rec, nil
}

func (s *ScanService) analyze(ctx context.Context, img models.EncodedImage, reading models.Reading) (*models.AnalysisResult, error) {
	if s.analyzer == nil {
		return nil, fmt.Errorf("%w: no analyzer configured", ErrAnalysisFailed)
	}
	res, err := s.analyzer.Analyze(ctx, img, reading)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	return &res, nil
}

// CaptureOnly takes a picture under the same gate as full scans. Nothing is
// persisted.
func (s *ScanService) CaptureOnly(ctx context.Context) (models.EncodedImage, error) {
	release, ok := s.acquire()
	if !ok {
		s.emit(models.StatusEvent{Type: models.StatusScanRejected, Trigger: models.TriggerManual, Message: "Capture skipped: a scan is in progress", Error: ErrScanInProgress.Error()})
		return models.EncodedImage{}, ErrScanInProgress
	}
	defer release()

	img, err := s.capturer.Capture(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCaptureFailed, err)
		s.log.Errorw("capture_failed", "error", err)
		s.emit(models.StatusEvent{Type: models.StatusCaptureFailed, Trigger: models.TriggerManual, Message: "Failed to capture image", Error: err.Error()})
		return models.EncodedImage{}, err
	}
	s.emit(models.StatusEvent{Type: models.StatusCaptureCompleted, Trigger: models.TriggerManual, Message: "Image captured"})
	return img, nil
}

// EnableAuto arms the timer one interval from now. No-op when already enabled.
func (s *ScanService) EnableAuto() models.AutoScanState {
	s.mu.Lock()
	if !s.enabled {
		s.enabled = true
		s.gen++
		s.armLocked()
		s.log.Infow("autoscan_enabled", "interval", s.interval.String())
	}
	st := s.stateLocked()
	s.mu.Unlock()

	s.auto.Publish(st)
	return st
}

// DisableAuto stops future auto scans. A scan already running completes.
func (s *ScanService) DisableAuto() models.AutoScanState {
	s.mu.Lock()
	if s.enabled {
		s.enabled = false
		s.gen++
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.nextRunAt = time.Time{}
		s.log.Infow("autoscan_disabled")
	}
	st := s.stateLocked()
	s.mu.Unlock()

	s.auto.Publish(st)
	return st
}

func (s *ScanService) AutoState() models.AutoScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *ScanService) stateLocked() models.AutoScanState {
	st := models.AutoScanState{
		Enabled:  s.enabled,
		Phase:    models.PhaseDisabled,
		Interval: models.Duration(s.interval),
		InFlight: s.InFlight(),
	}
	switch {
	case s.enabled && !s.nextRunAt.IsZero():
		next := s.nextRunAt
		st.Phase = models.PhaseArmed
		st.NextRunAt = &next
		st.Countdown = FormatCountdown(next.Sub(s.now()))
	case s.running:
		st.Phase = models.PhaseRunning
	}
	return st
}

func (s *ScanService) armLocked() {
	gen := s.gen
	s.nextRunAt = s.now().Add(s.interval)
	s.timer = time.AfterFunc(s.interval, func() { s.fire(gen) })
}

func (s *ScanService) fire(gen uint64) {
	s.mu.Lock()
	if !s.enabled || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.nextRunAt = time.Time{}
	s.timer = nil
	s.runs.Add(1)
	st := s.stateLocked()
	s.mu.Unlock()
	s.auto.Publish(st)

	defer s.runs.Done()
	if _, err := s.Scan(context.Background(), models.TriggerAuto); err != nil {
		s.log.Warnw("autoscan_run_failed", "error", err)
	}

	s.mu.Lock()
	s.running = false
	if s.enabled && gen == s.gen {
		s.armLocked()
	}
	st = s.stateLocked()
	s.mu.Unlock()
	s.auto.Publish(st)
}

// Run publishes the auto-scan state every second until ctx is done, then
// disables auto-scan and waits for a running auto scan to finish.
func (s *ScanService) Run(ctx context.Context) {
	t := time.NewTicker(countdownTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.DisableAuto()
			s.runs.Wait()
			return
		case <-t.C:
			s.auto.Publish(s.AutoState())
		}
	}
}

func (s *ScanService) WatchStatus(ctx context.Context) <-chan models.StatusEvent {
	return s.status.Subscribe(ctx)
}

// WatchAuto delivers the current auto-scan state and then every update.
func (s *ScanService) WatchAuto(ctx context.Context) <-chan models.AutoScanState {
	return s.auto.Subscribe(ctx, s.AutoState())
}

func (s *ScanService) emit(ev models.StatusEvent) {
	ev.OccurredAt = s.now().UTC()
	s.status.Publish(ev)
}

// FormatCountdown renders d as HH:MM:SS, rounding up to whole seconds.
// Negative durations render as zero.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
