package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"birdgate/internal/config"
	"birdgate/internal/handler"
	"birdgate/internal/logger"
	"birdgate/internal/middleware"
	"birdgate/internal/repository"
	"birdgate/internal/service/websocket"
)

// Detector classifies uploads and reports model status.
type Detector interface {
	handler.BirdDetector
	handler.StatusReporter
}

// Deps are the services the HTTP surface depends on.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Manager       handler.FrameSink
	Detector      Detector
	Hub           *websocket.HubService
	ImageRepo     repository.ImageRepository
	DetectionRepo repository.DetectionRepository
	StaticDir     string
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers static files, camera ingest, API and log
// endpoints, and wraps the mux with the authentication middleware.
func SetupRoutes(d Deps) http.Handler {
	staticDir := d.StaticDir
	if staticDir == "" {
		staticDir = "static"
	}
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	// Camera ingest
	mux.HandleFunc("/camera/upload", handler.UploadHandler(d.Manager, d.Logger))

	// API endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(d.Hub, d.Logger))
	mux.HandleFunc("/api/classify", handler.ClassifyHandler(d.Detector, d.Logger))
	mux.HandleFunc("/api/status", handler.StatusHandler(d.Detector, d.Logger))
	mux.HandleFunc("/api/detections", handler.GetDetectionsHandler(d.Logger, d.ImageRepo, d.DetectionRepo))
	mux.HandleFunc("/api/detections/stats", handler.GetDetectionStatsHandler(d.Logger, d.ImageRepo))
	mux.HandleFunc("/api/detections/image", handler.ViewDetectionImageHandler(d.Logger, d.ImageRepo))
	mux.HandleFunc("/api/detections/delete", handler.DeleteDetectionHandler(d.Logger, d.ImageRepo))
	mux.HandleFunc("/api/detections/clear", handler.ClearDetectionsHandler(d.Config, d.Logger, d.ImageRepo))

	// Log endpoints
	for path, file := range map[string]string{
		"/logs/info":    logger.InfoFile,
		"/logs/warning": logger.WarningFile,
		"/logs/error":   logger.ErrorFile,
	} {
		mux.HandleFunc(path, handler.ShowLogsHandler(d.Logger, file))
		mux.HandleFunc(path+"/clear", handler.ClearLogsHandler(d.Logger, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(d.Config, d.Logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /settings -> static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler(staticDir))

	return middleware.AuthMiddleware(mux)
}
