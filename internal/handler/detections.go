package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"birdgate/internal/config"
	"birdgate/internal/logger"
	"birdgate/internal/model"
	"birdgate/internal/repository"
)

const defaultPageSize = 24

// ImageDetections is a stored frame with its detections.
type ImageDetections struct {
	model.Image
	Detections []model.Detection `json:"detections"`
}

// DetectionsPage is the body of GET /api/detections.
type DetectionsPage struct {
	Images      []ImageDetections `json:"images"`
	Length      int               `json:"length"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
	Limit       int               `json:"pageSize"`
}

// GetDetectionsHandler returns stored detections filtered by camera, label
// and date range (dateAfter, dateBefore in YYYY-MM-DD), paginated.
func GetDetectionsHandler(logger *logger.Logger, imageRepo repository.ImageRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), defaultPageSize)

		filter := &model.ImageFilter{
			Camera:    q.Get("camera"),
			Label:     q.Get("label"),
			StartDate: parseDate(q.Get("dateAfter")),
			Limit:     limit,
			Offset:    (page - 1) * limit,
		}
		if end := parseDate(q.Get("dateBefore")); !end.IsZero() {
			filter.EndDate = end.Add(24*time.Hour - time.Nanosecond)
		}

		images, err := imageRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying images from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := imageRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting images: %v", err)
			totalCount = len(images)
		}

		data := DetectionsPage{
			Images:      make([]ImageDetections, 0, len(images)),
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}
		for _, img := range images {
			detections, err := detectionRepo.GetByImageID(img.ID)
			if err != nil {
				logger.Error("Error getting detections for image %d: %v", img.ID, err)
			}
			if detections == nil {
				detections = []model.Detection{}
			}
			data.Images = append(data.Images, ImageDetections{Image: img, Detections: detections})
		}

		writeJSON(w, http.StatusOK, data, logger)
	}
}

// GetDetectionStatsHandler returns aggregate counts.
func GetDetectionStatsHandler(logger *logger.Logger, imageRepo repository.ImageRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := imageRepo.GetStats()
		if err != nil {
			logger.Error("Error getting stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats, logger)
	}
}

// ViewDetectionImageHandler serves the stored frame for ?id=.
func ViewDetectionImageHandler(logger *logger.Logger, imageRepo repository.ImageRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img, ok := lookupImage(w, r, logger, imageRepo)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, img.FilePath)
	}
}

// DeleteDetectionHandler removes the frame for ?id= from disk and database.
func DeleteDetectionHandler(logger *logger.Logger, imageRepo repository.ImageRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		img, ok := lookupImage(w, r, logger, imageRepo)
		if !ok {
			return
		}

		if err := os.Remove(img.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", img.FilePath, err)
		}
		if err := imageRepo.Delete(img.ID); err != nil {
			logger.Error("Failed to delete from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted detection image: %s", img.Filename)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "filename": img.Filename}, logger)
	}
}

// ClearDetectionsHandler deletes every stored frame and detection.
func ClearDetectionsHandler(cfg *config.Config, logger *logger.Logger, imageRepo repository.ImageRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		files, err := os.ReadDir(cfg.ImageDirectory)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading pictures directory: %v", err)
			http.Error(w, "Unable to read pictures directory", http.StatusInternalServerError)
			return
		}

		removed := 0
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(cfg.ImageDirectory, file.Name())); err != nil {
				logger.Error("Failed to delete file %s: %v", file.Name(), err)
				continue
			}
			removed++
		}

		if err := imageRepo.DeleteAll(); err != nil {
			logger.Error("Failed to clear database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Cleared %d detection images", removed)
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "cleared", "removed": removed}, logger)
	}
}

func lookupImage(w http.ResponseWriter, r *http.Request, logger *logger.Logger, imageRepo repository.ImageRepository) (*model.Image, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Valid id required", http.StatusBadRequest)
		return nil, false
	}
	img, err := imageRepo.GetByID(id)
	if err != nil {
		logger.Error("Error loading image %d: %v", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	if img == nil {
		http.NotFound(w, r)
		return nil, false
	}
	return img, true
}

func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
