package dto

import "time"

// BufferedImage holds image data and detection results before flushing to disk.
type BufferedImage struct {
	Timestamp  time.Time
	Camera     string
	Detections []DetectionResult
	Data       []byte
}
