package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"birdgate/internal/config"
	"birdgate/internal/handler"
	"birdgate/internal/logger"
	"birdgate/internal/repository/sqlite"
	"birdgate/internal/routes"
	"birdgate/internal/service"
	"birdgate/internal/service/ai"
	"birdgate/internal/service/storage"
	"birdgate/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config          *config.Config
	logger          *logger.Logger
	db              *sqlite.DB
	detectorService *ai.DetectorService
	bufferService   *storage.BufferService
	hubService      *websocket.HubService
	manager         *service.Manager
}

func NewApp() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.NewLogger(cfg)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, err
	}
	imageRepo := sqlite.NewImageRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	detector := ai.NewDetectorService(cfg, log)
	buffer := storage.NewBufferService(cfg, log, imageRepo, detectionRepo)
	hub := websocket.NewHubService(log)

	return &App{
		config:          cfg,
		logger:          log,
		db:              db,
		detectorService: detector,
		bufferService:   buffer,
		hubService:      hub,
		manager:         service.NewManager(detector, buffer, hub, cfg, log),
	}, nil
}

// Run serves HTTP and camera UDP traffic until ctx is cancelled, then shuts
// everything down in dependency order.
func (a *App) Run(ctx context.Context) error {
	go a.bufferService.Run()
	go a.hubService.Run()

	udpConn, err := handler.UDPCameraHandler(a.manager, a.logger, a.config)
	if err != nil {
		a.shutdown()
		return err
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", a.config.Port),
		Handler: routes.SetupRoutes(routes.Deps{
			Config:        a.config,
			Logger:        a.logger,
			Manager:       a.manager,
			Detector:      a.detectorService,
			Hub:           a.hubService,
			ImageRepo:     sqlite.NewImageRepository(a.db),
			DetectionRepo: sqlite.NewDetectionRepository(a.db),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	status := a.detectorService.Status()
	fmt.Printf("🚀 Bird Camera Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📁 Images: %s\n", a.config.ImageDirectory)
	fmt.Printf("🤖 AI Model: %s (%s, %s)\n", a.config.ModelPath, status.Backend, status.Availability)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = server.Shutdown(shutdownCtx)
		cancel()
	}

	udpConn.Close()
	a.shutdown()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) shutdown() {
	a.manager.Stop()
	a.bufferService.Stop()
	a.bufferService.FlushImages()
	a.hubService.Stop()
	if err := a.detectorService.Close(); err != nil {
		a.logger.Warning("Error closing detector: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database: %v", err)
	}
	a.logger.Close()
}
