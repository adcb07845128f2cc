// Package classifier turns an inference handle into a bird/no-bird verdict
// that can gate motion events.
package classifier

import (
	"time"

	"birdgate/internal/inference"
	"birdgate/internal/logger"
)

// Label is the target class reported in verdicts and stored detections.
const Label = "bird"

// Verdict is the outcome of gating one frame.
type Verdict struct {
	Label      string                `json:"label"`
	Bird       bool                  `json:"bird"`
	Available  bool                  `json:"available"`
	Confidence *inference.Confidence `json:"confidence"`
	Absent     *inference.Confidence `json:"absent,omitempty"`
	Threshold  float32               `json:"threshold"`
	Elapsed    time.Duration         `json:"elapsed_ns"`
	Err        error                 `json:"-"`
}

// ErrorText returns the classification error as text, or "".
func (v Verdict) ErrorText() string {
	if v.Err == nil {
		return ""
	}
	return v.Err.Error()
}

// Status describes the loaded model for the status endpoint.
type Status struct {
	Availability string  `json:"availability"`
	Backend      string  `json:"backend"`
	ModelPath    string  `json:"model_path"`
	InputWidth   int     `json:"input_width"`
	InputHeight  int     `json:"input_height"`
	Threshold    float32 `json:"threshold"`
}

// Classifier applies the decision threshold on top of an inference.Handle.
type Classifier struct {
	handle    *inference.Handle
	threshold float32
	backend   string
	modelPath string
	logger    *logger.Logger
}

// Options carries descriptive fields for Status.
type Options struct {
	Threshold float32
	Backend   string
	ModelPath string
}

// New wraps handle. A nil handle is treated as unavailable.
func New(handle *inference.Handle, opts Options, logger *logger.Logger) *Classifier {
	if handle == nil {
		handle = inference.UnavailableHandle()
	}
	return &Classifier{
		handle:    handle,
		threshold: opts.Threshold,
		backend:   opts.Backend,
		modelPath: opts.ModelPath,
		logger:    logger,
	}
}

// Available reports whether the model is loaded.
func (c *Classifier) Available() bool {
	return c.handle.Availability() == inference.Available
}

// Threshold returns the configured decision threshold.
func (c *Classifier) Threshold() float32 {
	return c.threshold
}

// Classify runs the model on frame. Any failure leaves Confidence nil and
// the verdict falls back to Bird=true so motion alone decides.
func (c *Classifier) Classify(frame inference.GrayscaleImage) Verdict {
	v := Verdict{
		Label:     Label,
		Available: c.Available(),
		Threshold: c.threshold,
	}

	res, err := c.handle.Classify(frame)
	switch {
	case err == nil:
		conf := res.Confidence
		v.Confidence = &conf
		v.Absent = res.Absent
		v.Elapsed = res.Elapsed
		if res.Absent != nil {
			c.logger.Info("AI: %.1f%% bird (%.1f%% not) [%dms]", conf.Percent(), res.Absent.Percent(), res.Elapsed.Milliseconds())
		} else {
			c.logger.Info("AI: %.1f%% bird [%dms]", conf.Percent(), res.Elapsed.Milliseconds())
		}
	case inference.IsUnavailable(err) && !v.Available:
		v.Err = err
	default:
		v.Err = err
		c.logger.Warning("Bird classification failed, falling back to motion: %v", err)
	}

	v.Bird = inference.IsTargetPresent(v.Confidence, c.threshold)
	return v
}

// Status reports the model state.
func (c *Classifier) Status() Status {
	w, h := c.handle.InputShape()
	return Status{
		Availability: c.handle.Availability().String(),
		Backend:      c.backend,
		ModelPath:    c.modelPath,
		InputWidth:   w,
		InputHeight:  h,
		Threshold:    c.threshold,
	}
}

// Close releases the model.
func (c *Classifier) Close() error {
	return c.handle.Close()
}
