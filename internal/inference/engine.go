package inference

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Engine is a loaded model. Implementations own the tensor memory; the views
// returned by Input and Output are only valid until the next call to Invoke
// or Close and must not be retained across requests.
type Engine interface {
	Input() (*InputTensor, error)
	Output() (*OutputTensor, error)
	Invoke() error
	Close() error
}

// Loader builds an Engine from a model blob.
type Loader func(model []byte) (Engine, error)

// Availability tells whether classification requests can reach an engine.
type Availability int

const (
	Unavailable Availability = iota
	Available
)

func (a Availability) String() string {
	if a == Available {
		return "available"
	}
	return "unavailable"
}

// Result is the outcome of one classification request.
type Result struct {
	Confidence Confidence
	// Absent is the "target absent" score when the model has a two-class output.
	Absent  *Confidence
	Elapsed time.Duration
}

// Handle owns an Engine and its availability. Classify calls are
// serialized so one request runs to completion before the next begins.
type Handle struct {
	mu     sync.Mutex
	engine Engine
	state  Availability
}

// Open loads model with load. On failure the returned handle is
// Unavailable and the error explains why; the handle is still usable and
// every Classify call on it fails with ErrEngineUnavailable.
func Open(load Loader, model []byte) (*Handle, error) {
	h := &Handle{}
	if load == nil {
		return h, fmt.Errorf("%w: no engine loader", ErrEngineUnavailable)
	}
	if len(model) == 0 {
		return h, fmt.Errorf("%w: empty model", ErrEngineUnavailable)
	}
	engine, err := load(model)
	if err != nil {
		return h, fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}
	if engine == nil {
		return h, fmt.Errorf("%w: loader returned no engine", ErrEngineUnavailable)
	}
	h.engine = engine
	h.state = Available
	return h, nil
}

// NewHandle wraps an already loaded engine. A nil engine yields an Unavailable handle.
func NewHandle(engine Engine) *Handle {
	if engine == nil {
		return &Handle{}
	}
	return &Handle{engine: engine, state: Available}
}

// UnavailableHandle returns a handle that never classifies.
func UnavailableHandle() *Handle {
	return &Handle{}
}

// Availability reports the handle state.
func (h *Handle) Availability() Availability {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// InputShape returns the model grid size, or zeros when unavailable.
func (h *Handle) InputShape() (width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Available {
		return 0, 0
	}
	in, err := h.engine.Input()
	if err != nil || in == nil {
		return 0, 0
	}
	return in.Width, in.Height
}

// Classify resamples img into the engine input, invokes the model and
// extracts the target-class confidence.
func (h *Handle) Classify(img GrayscaleImage) (Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != Available {
		return Result{}, ErrEngineUnavailable
	}

	start := time.Now()

	in, err := h.engine.Input()
	if err != nil {
		return Result{}, fmt.Errorf("%w: input tensor: %w", ErrEngineUnavailable, err)
	}
	if err := Resample(img, in); err != nil {
		return Result{}, fmt.Errorf("resample: %w", err)
	}

	if err := h.engine.Invoke(); err != nil {
		return Result{}, fmt.Errorf("%w: invoke: %w", ErrEngineUnavailable, err)
	}

	out, err := h.engine.Output()
	if err != nil {
		return Result{}, fmt.Errorf("%w: output tensor: %w", ErrEngineUnavailable, err)
	}
	conf, err := ExtractConfidence(out)
	if err != nil {
		return Result{}, fmt.Errorf("extract confidence: %w", err)
	}

	res := Result{Confidence: conf, Elapsed: time.Since(start)}
	if out.Len() >= 2 {
		if v, err := out.Value(AbsentIndex); err == nil {
			absent := Confidence(clamp01(v))
			res.Absent = &absent
		}
	}
	return res, nil
}

// Close releases the engine. The handle becomes Unavailable.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.engine == nil {
		return nil
	}
	err := h.engine.Close()
	h.engine = nil
	h.state = Unavailable
	return err
}

// IsUnavailable reports whether err came from a missing or failed engine
// rather than from preprocessing or output interpretation.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrEngineUnavailable)
}
