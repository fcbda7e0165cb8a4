package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"harvest_monitor/internal/models"
	"harvest_monitor/internal/repository"
)

// memScanRepo is an in-memory repository.ScanRepo.
type memScanRepo struct {
	mu        sync.Mutex
	recs      []models.ScanRecord
	appendErr error
	listErr   error
}

var _ repository.ScanRepo = (*memScanRepo)(nil)

func (m *memScanRepo) Append(ctx context.Context, rec models.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memScanRepo) List(ctx context.Context, q repository.ScanQuery) ([]models.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.ScanRecord, 0, len(m.recs))
	for _, r := range m.recs {
		if q.Date != "" && r.Date != q.Date {
			continue
		}
		if q.OmitImageData && r.Image != nil {
			img := models.EncodedImage{MimeType: r.Image.MimeType, Data: []byte{}}
			r.Image = &img
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memScanRepo) Get(ctx context.Context, id string) (models.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.ID == id {
			return r, nil
		}
	}
	return models.ScanRecord{}, repository.ErrScanNotFound
}

func (m *memScanRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

type fakeCamera struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context) (models.EncodedImage, error)
}

func (f *fakeCamera) Capture(ctx context.Context) (models.EncodedImage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx)
	}
	return models.EncodedImage{MimeType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF, 0xE0}}, nil
}

type fakeAnalyzer struct {
	res models.AnalysisResult
	err error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, img models.EncodedImage, reading models.Reading) (models.AnalysisResult, error) {
	return f.res, f.err
}

// cancelingAnalyzer cancels the caller's context and fails like an
// interrupted request would.
type cancelingAnalyzer struct {
	cancel context.CancelFunc
}

func (a cancelingAnalyzer) Analyze(ctx context.Context, img models.EncodedImage, reading models.Reading) (models.AnalysisResult, error) {
	a.cancel()
	<-ctx.Done()
	return models.AnalysisResult{}, ctx.Err()
}

type fakeReadings struct {
	reading models.Reading
	ok      bool
}

func (f fakeReadings) Current() (models.Reading, bool) { return f.reading, f.ok }

func sampleReading() models.Reading {
	return models.Reading{
		Nitrogen:    models.NutrientValue{Value: 35, Raw: 350},
		Phosphorus:  models.NutrientValue{Value: 42, Raw: 420},
		Potassium:   models.NutrientValue{Value: 28, Raw: 280},
		PH:          models.NutrientValue{Value: 6.5, Raw: 650},
		Moisture:    models.SoilMoisture{Average: 65},
		Humidity:    80,
		Temperature: 22,
		CapturedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// blockingCamera returns a capture func that signals entered and waits for release.
func blockingCamera() (fn func(ctx context.Context) (models.EncodedImage, error), entered chan struct{}, release chan struct{}) {
	entered = make(chan struct{}, 8)
	release = make(chan struct{})
	fn = func(ctx context.Context) (models.EncodedImage, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return models.EncodedImage{MimeType: "image/jpeg", Data: []byte{1, 2, 3}}, nil
	}
	return fn, entered, release
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// drainStatus collects status events until none arrive for a short while.
func drainStatus(ch <-chan models.StatusEvent) []string {
	var types []string
	for {
		select {
		case ev := <-ch:
			types = append(types, ev.Type)
		case <-time.After(50 * time.Millisecond):
			return types
		}
	}
}

var repositoryQueryAll = repository.ScanQuery{}
