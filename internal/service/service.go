package service

import (
	"context"

	"harvest_monitor/internal/logger"
	"harvest_monitor/internal/models"
	"harvest_monitor/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Readings exposes the latest sensor reading.
type Readings interface {
	GetCurrent() (models.Reading, error)
}

// Scanner runs manual, capture-only and periodic scans behind one gate.
type Scanner interface {
	Scan(ctx context.Context, trigger models.ScanTrigger) (models.ScanRecord, error)
	CaptureOnly(ctx context.Context) (models.EncodedImage, error)
	EnableAuto() models.AutoScanState
	DisableAuto() models.AutoScanState
	AutoState() models.AutoScanState
	WatchStatus(ctx context.Context) <-chan models.StatusEvent
	WatchAuto(ctx context.Context) <-chan models.AutoScanState
}

// History exposes stored scans.
type History interface {
	List(ctx context.Context, date string, limit int) ([]models.ScanRecord, error)
	Get(ctx context.Context, id string) (models.ScanRecord, error)
}

// Notifications exposes the per-date notification projection.
type Notifications interface {
	View(date string) (models.NotificationView, error)
	Dates() []string
	Changes(ctx context.Context) <-chan struct{}
}

// Service aggregates the sub-services the HTTP layer depends on.
type Service struct {
	Readings
	Scanner
	History
	Notifications
	Authorization
}

// Deps are the outside collaborators the services are built from.
type Deps struct {
	Repos    *repository.Repository
	Readings ReadingSource
	Camera   Capturer
	Vision   Analyzer // nil disables analysis
	Scanner  ScannerConfig
	Auth     AuthConfig
	Log      *logger.Logger
}

// Components keeps the concrete services main needs to run in the background.
type Components struct {
	Scanner       *ScanService
	History       *HistoryService
	Notifications *NotificationService
}

// NewService wires the repository layer and clients into concrete services.
func NewService(d Deps) (*Service, Components) {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	history := NewHistoryService(d.Repos.ScanRepo, log.Named("history"))
	scanner := NewScanService(d.Camera, d.Vision, d.Readings, history, d.Scanner, log.Named("scanner"))
	notifications := NewNotificationService(history, log.Named("notifications"))

	svc := &Service{
		Readings:      NewReadingService(d.Readings),
		Scanner:       scanner,
		History:       history,
		Notifications: notifications,
		Authorization: NewAuthService(d.Repos.Auth, d.Auth),
	}
	return svc, Components{Scanner: scanner, History: history, Notifications: notifications}
}
