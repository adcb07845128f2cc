package model

import "time"

// Image represents a stored frame.
type Image struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Camera    string    `json:"camera"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}

// ImageFilter contains filtering options for querying images.
type ImageFilter struct {
	Camera    string
	Label     string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
	Offset    int
}

// ImageStats contains statistics about stored detections.
type ImageStats struct {
	TotalImages    int            `json:"total_images"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	PerCamera      map[string]int `json:"per_camera"`
	// Classified counts detections confirmed by the model; MotionOnly counts
	// detections stored while the classifier was unavailable.
	Classified int `json:"classified"`
	MotionOnly int `json:"motion_only"`
}
