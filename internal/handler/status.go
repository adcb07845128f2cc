package handler

import (
	"net/http"

	"birdgate/internal/logger"
	"birdgate/internal/service/classifier"
)

// StatusReporter reports the classifier state.
type StatusReporter interface {
	Status() classifier.Status
}

// StatusHandler handles GET /api/status.
func StatusHandler(reporter StatusReporter, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reporter.Status(), logger)
	}
}
