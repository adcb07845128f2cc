package dto

// DetectionResult is a verdict as carried through the buffer and events.
type DetectionResult struct {
	EventID     string   `json:"event_id"`
	Camera      string   `json:"camera"`
	Label       string   `json:"label"`
	Confidence  *float32 `json:"confidence"`
	AIAvailable bool     `json:"ai_available"`
	Timestamp   string   `json:"timestamp"`
}
