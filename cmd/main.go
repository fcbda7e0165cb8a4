package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "harvest_monitor/docs"
	"harvest_monitor/internal/camera"
	"harvest_monitor/internal/config"
	"harvest_monitor/internal/feed"
	"harvest_monitor/internal/handlers"
	"harvest_monitor/internal/logger"
	"harvest_monitor/internal/repository"
	"harvest_monitor/internal/server"
	"harvest_monitor/internal/service"
	"harvest_monitor/internal/vision"
)

const shutdownTimeout = 10 * time.Second

// @title                       Harvest Monitor API
// @version                     1.0
// @description                 Soil sensor readings, camera scans with harvest-readiness analysis, auto-scan control and scan history.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load("configs")
	if err != nil {
		logger.New(logger.Options{Level: logger.InfoLevel}).Fatalw("error reading config", "err", err)
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer func() { _ = log.Sync() }()

	repos, closer, err := repository.Open(repository.Options{
		Engine: cfg.DB.Engine,
		Path:   cfg.DB.Path,
		DSN:    cfg.DB.DSN,
	})
	if err != nil {
		log.Fatalw("failed to open database", "engine", cfg.DB.Engine, "err", err)
	}
	defer closeDB(closer, log)

	cam, err := camera.NewClient(camera.Config{URL: cfg.Camera.URL, Timeout: cfg.Camera.Timeout})
	if err != nil {
		log.Fatalw("invalid camera config", "err", err)
	}

	state := feed.NewState()
	src, err := newFeedSource(cfg.Feed)
	if err != nil {
		log.Fatalw("invalid feed config", "source", cfg.Feed.Source, "err", err)
	}

	services, components := service.NewService(service.Deps{
		Repos:    repos,
		Readings: state,
		Camera:   cam,
		Vision:   newAnalyzer(cfg.Vision, log),
		Scanner:  service.ScannerConfig{Interval: cfg.Scanner.AutoInterval, Location: cfg.Location()},
		Auth:     service.AuthConfig{SigningKey: cfg.Auth.SigningKey, TokenTTL: cfg.Auth.TokenTTL},
		Log:      log,
	})
	apiHandler := handlers.NewHandler(services, log.Named("http"), handlers.WithCORSOrigins(cfg.HTTP.CORSOrigins...))

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	runBackground(&wg, func() { feed.NewAdapter(src, state, log.Named("feed")).Run(ctx) })
	runBackground(&wg, func() { components.Scanner.Run(ctx) })
	runBackground(&wg, func() { components.Notifications.Run(ctx) })

	if cfg.Scanner.AutoStart {
		components.Scanner.EnableAuto()
	}

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := server.New(port, apiHandler.InitRoutes(), server.Options{WriteTimeout: cfg.HTTP.WriteTimeout})
	runHTTPServer(srv, port, log)

	waitForShutdown(cancel, srv, log)
	wg.Wait()
}

func runBackground(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}

// newFeedSource picks the sensor feed transport.
func newFeedSource(cfg config.FeedConfig) (feed.Source, error) {
	switch cfg.Source {
	case "websocket":
		return feed.NewWebSocketSource(cfg.URL, nil), nil
	case "rtdb":
		return feed.NewRTDBSource(cfg.URL, cfg.Path, cfg.AuthKey)
	default:
		return feed.NewSimulator(cfg.Interval, time.Now().UnixNano()), nil
	}
}

// newAnalyzer returns nil when no API key is configured; scans are then
// stored without analysis.
func newAnalyzer(cfg config.VisionConfig, log *logger.Logger) service.Analyzer {
	client, err := vision.NewClient(vision.Config{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		log.Warnw("vision analysis disabled", "err", err)
		return nil
	}
	return client
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, log *logger.Logger) {
	go func() {
		log.Infow("http server listening", "port", port)
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}

func closeDB(closer io.Closer, log *logger.Logger) {
	if err := closer.Close(); err != nil {
		log.Errorw("failed to close database", "err", err)
	}
}
