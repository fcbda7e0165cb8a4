package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"harvest_monitor/internal/models"
)

func newTestScanner(cam *fakeCamera, an Analyzer, repo *memScanRepo, interval time.Duration) *ScanService {
	return NewScanService(cam, an, fakeReadings{reading: sampleReading(), ok: true}, repo, ScannerConfig{Interval: interval}, nil)
}

func TestRunScan_Success(t *testing.T) {
	repo := &memScanRepo{}
	an := &fakeAnalyzer{res: models.AnalysisResult{GrowthStage: "Fruiting", HarvestReady: "Yes"}}
	s := newTestScanner(&fakeCamera{}, an, repo, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.WatchStatus(ctx)

	rec, err := s.RunScan(context.Background(), sampleReading(), models.TriggerManual)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if rec.ID == "" || rec.Trigger != models.TriggerManual || rec.Image == nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Analysis == nil || rec.Analysis.GrowthStage != "Fruiting" {
		t.Fatalf("expected analysis, got %+v", rec.Analysis)
	}
	if rec.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp not UTC: %v", rec.Timestamp)
	}
	if repo.count() != 1 {
		t.Fatalf("expected 1 record, got %d", repo.count())
	}

	want := []string{models.StatusScanStarted, models.StatusScanCompleted}
	if got := drainStatus(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestRunScan_AnalysisFailureStillPersists(t *testing.T) {
	repo := &memScanRepo{}
	s := newTestScanner(&fakeCamera{}, &fakeAnalyzer{err: errors.New("model down")}, repo, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.WatchStatus(ctx)

	rec, err := s.RunScan(context.Background(), sampleReading(), models.TriggerManual)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if rec.Analysis != nil {
		t.Fatalf("expected nil analysis, got %+v", rec.Analysis)
	}
	if repo.count() != 1 {
		t.Fatalf("expected exactly 1 record, got %d", repo.count())
	}
	want := []string{models.StatusScanStarted, models.StatusAnalysisFailed, models.StatusScanCompleted}
	if got := drainStatus(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestRunScan_CallerGoneDuringAnalysisStillPersists(t *testing.T) {
	repo := &memScanRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestScanner(&fakeCamera{}, cancelingAnalyzer{cancel: cancel}, repo, time.Hour)

	rec, err := s.RunScan(ctx, sampleReading(), models.TriggerManual)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if rec.Analysis != nil {
		t.Fatalf("expected nil analysis, got %+v", rec.Analysis)
	}
	if repo.count() != 1 {
		t.Fatalf("expected exactly 1 record, got %d", repo.count())
	}
}

func TestRunScan_NoAnalyzerConfigured(t *testing.T) {
	repo := &memScanRepo{}
	s := newTestScanner(&fakeCamera{}, nil, repo, time.Hour)

	rec, err := s.RunScan(context.Background(), sampleReading(), models.TriggerManual)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if rec.Analysis != nil || repo.count() != 1 {
		t.Fatalf("expected one record without analysis, got %+v (count %d)", rec.Analysis, repo.count())
	}
}

func TestRunScan_CaptureFailurePersistsNothing(t *testing.T) {
	repo := &memScanRepo{}
	camErr := errors.New("camera offline")
	cam := &fakeCamera{fn: func(ctx context.Context) (models.EncodedImage, error) {
		return models.EncodedImage{}, camErr
	}}
	s := newTestScanner(cam, &fakeAnalyzer{}, repo, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.WatchStatus(ctx)

	_, err := s.RunScan(context.Background(), sampleReading(), models.TriggerManual)
	if !errors.Is(err, ErrCaptureFailed) || !errors.Is(err, camErr) {
		t.Fatalf("expected ErrCaptureFailed wrapping camera error, got %v", err)
	}
	if repo.count() != 0 {
		t.Fatalf("expected 0 records, got %d", repo.count())
	}
	want := []string{models.StatusScanStarted, models.StatusScanFailed}
	if got := drainStatus(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if s.InFlight() {
		t.Fatal("gate not released after failure")
	}
}

func TestRunScan_PersistenceFailure(t *testing.T) {
	repo := &memScanRepo{appendErr: errors.New("disk full")}
	s := newTestScanner(&fakeCamera{}, &fakeAnalyzer{}, repo, time.Hour)

	_, err := s.RunScan(context.Background(), sampleReading(), models.TriggerManual)
	if !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}
	if s.InFlight() {
		t.Fatal("gate not released after failure")
	}
}

func TestRunScan_RejectsWhileInFlight(t *testing.T) {
	repo := &memScanRepo{}
	fn, entered, release := blockingCamera()
	s := newTestScanner(&fakeCamera{fn: fn}, &fakeAnalyzer{}, repo, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.WatchStatus(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunScan(context.Background(), sampleReading(), models.TriggerManual)
		done <- err
	}()
	<-entered

	if _, err := s.RunScan(context.Background(), sampleReading(), models.TriggerManual); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("expected ErrScanInProgress, got %v", err)
	}
	if _, err := s.CaptureOnly(context.Background()); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("expected capture-only to be rejected, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if repo.count() != 1 {
		t.Fatalf("expected exactly 1 record, got %d", repo.count())
	}

	rejected := 0
	for _, typ := range drainStatus(events) {
		if typ == models.StatusScanRejected {
			rejected++
		}
	}
	if rejected != 2 {
		t.Fatalf("expected 2 scan_rejected events, got %d", rejected)
	}
}

func TestScan_UsesEmptyReadingBeforeFirstFeed(t *testing.T) {
	repo := &memScanRepo{}
	s := NewScanService(&fakeCamera{}, &fakeAnalyzer{}, fakeReadings{}, repo, ScannerConfig{}, nil)
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	rec, err := s.Scan(context.Background(), models.TriggerManual)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !rec.Reading.CapturedAt.Equal(fixed) || rec.Reading.Nitrogen.Value != 0 {
		t.Fatalf("unexpected reading: %+v", rec.Reading)
	}
}

func TestRunScan_DateUsesDisplayLocation(t *testing.T) {
	repo := &memScanRepo{}
	loc := time.FixedZone("UTC+2", 2*60*60)
	s := NewScanService(&fakeCamera{}, &fakeAnalyzer{}, fakeReadings{}, repo, ScannerConfig{Location: loc}, nil)
	s.now = func() time.Time { return time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC) }

	rec, err := s.RunScan(context.Background(), sampleReading(), models.TriggerManual)
	if err != nil {
		t.Fatalf("RunScan: %v", err)
	}
	if rec.Date != "2024-03-02" {
		t.Fatalf("date = %q, want 2024-03-02", rec.Date)
	}
}

func TestCaptureOnly(t *testing.T) {
	repo := &memScanRepo{}
	s := newTestScanner(&fakeCamera{}, &fakeAnalyzer{}, repo, time.Hour)

	img, err := s.CaptureOnly(context.Background())
	if err != nil {
		t.Fatalf("CaptureOnly: %v", err)
	}
	if len(img.Data) == 0 {
		t.Fatal("expected image bytes")
	}
	if repo.count() != 0 {
		t.Fatalf("capture-only must not persist, got %d records", repo.count())
	}

	failing := newTestScanner(&fakeCamera{fn: func(ctx context.Context) (models.EncodedImage, error) {
		return models.EncodedImage{}, errors.New("boom")
	}}, nil, repo, time.Hour)
	if _, err := failing.CaptureOnly(context.Background()); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("expected ErrCaptureFailed, got %v", err)
	}
}

func TestAutoScan_DisableBeforeIntervalRunsNothing(t *testing.T) {
	repo := &memScanRepo{}
	cam := &fakeCamera{}
	s := newTestScanner(cam, &fakeAnalyzer{}, repo, 40*time.Millisecond)

	st := s.EnableAuto()
	if !st.Enabled || st.Phase != models.PhaseArmed || st.NextRunAt == nil || st.Countdown == "" {
		t.Fatalf("unexpected armed state: %+v", st)
	}
	st = s.DisableAuto()
	if st.Enabled || st.Phase != models.PhaseDisabled || st.NextRunAt != nil || st.Countdown != "" {
		t.Fatalf("unexpected disabled state: %+v", st)
	}

	time.Sleep(150 * time.Millisecond)
	if repo.count() != 0 {
		t.Fatalf("expected no scans, got %d", repo.count())
	}
}

func TestAutoScan_FiresAndRearms(t *testing.T) {
	repo := &memScanRepo{}
	s := newTestScanner(&fakeCamera{}, &fakeAnalyzer{}, repo, 30*time.Millisecond)
	defer s.DisableAuto()

	s.EnableAuto()
	waitFor(t, 2*time.Second, func() bool { return repo.count() >= 2 })

	recs, _ := repo.List(context.Background(), repositoryQueryAll)
	for _, r := range recs {
		if r.Trigger != models.TriggerAuto {
			t.Fatalf("expected auto trigger, got %q", r.Trigger)
		}
	}
}

func TestAutoScan_FailuresKeepItArmed(t *testing.T) {
	repo := &memScanRepo{}
	cam := &fakeCamera{fn: func(ctx context.Context) (models.EncodedImage, error) {
		return models.EncodedImage{}, errors.New("offline")
	}}
	s := newTestScanner(cam, &fakeAnalyzer{}, repo, 20*time.Millisecond)
	defer s.DisableAuto()

	s.EnableAuto()
	waitFor(t, 2*time.Second, func() bool {
		cam.mu.Lock()
		defer cam.mu.Unlock()
		return cam.calls >= 3
	})
	if st := s.AutoState(); !st.Enabled {
		t.Fatalf("expected auto-scan to stay enabled, got %+v", st)
	}
	if repo.count() != 0 {
		t.Fatalf("failed captures must not persist, got %d", repo.count())
	}
}

func TestAutoScan_DisableWhileRunningLetsScanFinish(t *testing.T) {
	repo := &memScanRepo{}
	fn, entered, release := blockingCamera()
	s := newTestScanner(&fakeCamera{fn: fn}, &fakeAnalyzer{}, repo, 20*time.Millisecond)

	s.EnableAuto()
	<-entered
	if st := s.AutoState(); st.Phase != models.PhaseRunning || !st.InFlight {
		t.Fatalf("expected running state, got %+v", st)
	}

	s.DisableAuto()
	close(release)
	waitFor(t, time.Second, func() bool { return repo.count() == 1 && !s.InFlight() })

	time.Sleep(100 * time.Millisecond)
	if repo.count() != 1 {
		t.Fatalf("expected no further scans after disable, got %d", repo.count())
	}
	if st := s.AutoState(); st.Phase != models.PhaseDisabled || st.Enabled {
		t.Fatalf("expected disabled state, got %+v", st)
	}
}

func TestAutoScan_RejectedFireRearms(t *testing.T) {
	repo := &memScanRepo{}
	fn, entered, release := blockingCamera()
	cam := &fakeCamera{fn: fn}
	s := newTestScanner(cam, &fakeAnalyzer{}, repo, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.WatchStatus(ctx)

	manualDone := make(chan struct{})
	go func() {
		defer close(manualDone)
		_, _ = s.RunScan(context.Background(), sampleReading(), models.TriggerManual)
	}()
	<-entered

	s.EnableAuto()
	defer s.DisableAuto()

	// An auto fire meets the held gate and is rejected, then re-arms.
	deadline := time.After(2 * time.Second)
	for rejected := false; !rejected; {
		select {
		case ev := <-events:
			rejected = ev.Type == models.StatusScanRejected && ev.Trigger == models.TriggerAuto
		case <-deadline:
			t.Fatal("no rejected auto scan observed")
		}
	}
	waitFor(t, time.Second, func() bool { return s.AutoState().Phase == models.PhaseArmed })

	close(release)
	<-manualDone
	waitFor(t, 2*time.Second, func() bool { return repo.count() >= 2 })
}

func TestRun_TeardownDisablesAuto(t *testing.T) {
	s := newTestScanner(&fakeCamera{}, &fakeAnalyzer{}, &memScanRepo{}, time.Hour)
	s.EnableAuto()

	ctx, cancel := context.WithCancel(context.Background())
	updates := s.WatchAuto(ctx)
	if first := <-updates; first.Phase != models.PhaseArmed {
		t.Fatalf("expected current armed state first, got %+v", first)
	}

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if st := s.AutoState(); st.Enabled {
		t.Fatalf("expected auto-scan disabled on teardown, got %+v", st)
	}
}

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{-5 * time.Second, "00:00:00"},
		{time.Hour, "01:00:00"},
		{59*time.Minute + 59*time.Second + 100*time.Millisecond, "01:00:00"},
		{90 * time.Second, "00:01:30"},
		{25*time.Hour + 2*time.Second, "25:00:02"},
	}
	for _, tt := range tests {
		if got := FormatCountdown(tt.in); got != tt.want {
			t.Errorf("FormatCountdown(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
