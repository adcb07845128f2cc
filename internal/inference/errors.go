package inference

import "errors"

var (
	// ErrInputDimension is returned when a tensor grid or a source image has no usable area.
	ErrInputDimension = errors.New("invalid input dimensions")
	// ErrEmptyOutput is returned when the output tensor holds no elements.
	ErrEmptyOutput = errors.New("empty output tensor")
	// ErrUnsupportedEncoding is returned for tensor encodings other than float32, uint8 and int8.
	ErrUnsupportedEncoding = errors.New("unsupported tensor encoding")
	// ErrEngineUnavailable wraps any failure of the inference engine, including a missing model.
	ErrEngineUnavailable = errors.New("inference engine unavailable")
)
