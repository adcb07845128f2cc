package handler

import (
	"io"
	"net/http"

	"birdgate/internal/inference"
	"birdgate/internal/logger"
	"birdgate/internal/service/classifier"
)

// BirdDetector classifies a single decoded frame.
type BirdDetector interface {
	DecodeGrayscale(image []byte) (inference.GrayscaleImage, error)
	DetectBird(frame inference.GrayscaleImage) classifier.Verdict
}

// ClassifyResponse is the body of POST /api/classify.
type ClassifyResponse struct {
	Label      string   `json:"label"`
	Confidence *float32 `json:"confidence"` // nil when the classifier did not run
	Available  bool     `json:"available"`
	Bird       bool     `json:"bird"`
	Threshold  float32  `json:"threshold"`
	ElapsedMs  int64    `json:"elapsed_ms"`
	Error      string   `json:"error,omitempty"`
}

// ClassifyHandler handles POST /api/classify with an encoded image body.
func ClassifyHandler(detector BirdDetector, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		image, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
		if err != nil {
			http.Error(w, "Unable to read body", http.StatusBadRequest)
			return
		}
		if len(image) > maxUploadBytes {
			http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
			return
		}
		if len(image) == 0 {
			http.Error(w, "Image body required", http.StatusBadRequest)
			return
		}

		frame, err := detector.DecodeGrayscale(image)
		if err != nil {
			logger.Warning("Classify: cannot decode image: %v", err)
			http.Error(w, "Unable to decode image", http.StatusUnprocessableEntity)
			return
		}

		verdict := detector.DetectBird(frame)
		resp := ClassifyResponse{
			Label:     verdict.Label,
			Available: verdict.Available,
			Bird:      verdict.Bird,
			Threshold: verdict.Threshold,
			ElapsedMs: verdict.Elapsed.Milliseconds(),
			Error:     verdict.ErrorText(),
		}
		if verdict.Confidence != nil {
			conf := float32(*verdict.Confidence)
			resp.Confidence = &conf
		}
		writeJSON(w, http.StatusOK, resp, logger)
	}
}
