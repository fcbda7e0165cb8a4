package handlers

import (
	"context"
	"net/http"

	"harvest_monitor/internal/models"
	"harvest_monitor/internal/repository"
	"harvest_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockReadings struct {
	reading models.Reading
	err     error
}

func (m *mockReadings) GetCurrent() (models.Reading, error) { return m.reading, m.err }

type mockScanner struct {
	rec       models.ScanRecord
	scanErr   error
	img       models.EncodedImage
	imgErr    error
	state     models.AutoScanState
	status    chan models.StatusEvent
	auto      chan models.AutoScanState
	scanCalls int
	enabled   int
	disabled  int
}

func (m *mockScanner) Scan(ctx context.Context, trigger models.ScanTrigger) (models.ScanRecord, error) {
	m.scanCalls++
	return m.rec, m.scanErr
}
func (m *mockScanner) CaptureOnly(ctx context.Context) (models.EncodedImage, error) {
	return m.img, m.imgErr
}
func (m *mockScanner) EnableAuto() models.AutoScanState {
	m.enabled++
	m.state.Enabled = true
	m.state.Phase = models.PhaseArmed
	return m.state
}
func (m *mockScanner) DisableAuto() models.AutoScanState {
	m.disabled++
	m.state.Enabled = false
	m.state.Phase = models.PhaseDisabled
	return m.state
}
func (m *mockScanner) AutoState() models.AutoScanState { return m.state }

// WatchStatus hands out the shared status channel; tests push events into it.
func (m *mockScanner) WatchStatus(ctx context.Context) <-chan models.StatusEvent {
	if m.status == nil {
		m.status = make(chan models.StatusEvent)
	}
	return m.status
}
// WatchAuto hands out the shared auto-scan channel primed with the current state.
func (m *mockScanner) WatchAuto(ctx context.Context) <-chan models.AutoScanState {
	if m.auto == nil {
		m.auto = make(chan models.AutoScanState, 1)
		m.auto <- m.state
	}
	return m.auto
}

type mockHistory struct {
	recs      map[string]models.ScanRecord
	getErr    error
	listErr   error
	lastLimit int
}

func (m *mockHistory) List(ctx context.Context, date string, limit int) ([]models.ScanRecord, error) {
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.ScanRecord, 0, len(m.recs))
	for _, r := range m.recs {
		if date == "" || r.Date == date {
			out = append(out, r)
		}
	}
	out = service.SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (m *mockHistory) Get(ctx context.Context, id string) (models.ScanRecord, error) {
	if m.getErr != nil {
		return models.ScanRecord{}, m.getErr
	}
	rec, ok := m.recs[id]
	if !ok {
		return models.ScanRecord{}, repository.ErrScanNotFound
	}
	return rec, nil
}

type mockNotifications struct {
	view     models.NotificationView
	viewErr  error
	lastDate string
	changes  chan struct{}
}

func (m *mockNotifications) View(date string) (models.NotificationView, error) {
	m.lastDate = date
	return m.view, m.viewErr
}
func (m *mockNotifications) Dates() []string { return m.view.Dates }
func (m *mockNotifications) Changes(ctx context.Context) <-chan struct{} {
	if m.changes == nil {
		m.changes = make(chan struct{})
	}
	return m.changes
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
