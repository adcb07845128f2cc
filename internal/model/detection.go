package model

// Detection is a positive verdict attached to a stored image.
type Detection struct {
	ID          int64    `json:"id"`
	ImageID     int64    `json:"image_id"`
	EventID     string   `json:"event_id"`
	Label       string   `json:"label"`
	Confidence  *float64 `json:"confidence"` // nil when the classifier did not run
	AIAvailable bool     `json:"ai_available"`
}
