package onnx

import (
	"encoding/json"
	"fmt"
	"os"

	"birdgate/internal/inference"
)

// Metadata is the JSON sidecar shipped next to an .onnx model. ONNX graphs
// do not expose tensor quantization to the runtime, so the encodings are
// declared here.
type Metadata struct {
	InputName      string             `json:"input_name"`
	OutputName     string             `json:"output_name"`
	InputShape     []int64            `json:"input_shape"`
	OutputShape    []int64            `json:"output_shape"`
	Classes        []string           `json:"classes"`
	InputEncoding  inference.Encoding `json:"input_encoding"`
	OutputEncoding inference.Encoding `json:"output_encoding"`
}

// LoadMetadata reads and validates a metadata file.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	meta.applyDefaults()

	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

func (m *Metadata) applyDefaults() {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.InputEncoding.Type == 0 {
		m.InputEncoding = inference.Float32Encoding()
	}
	if m.OutputEncoding.Type == 0 {
		m.OutputEncoding = inference.Float32Encoding()
	}
}

// Validate checks shapes and encodings.
func (m Metadata) Validate() error {
	if _, _, err := m.Grid(); err != nil {
		return err
	}
	if n := elements(m.OutputShape); n < 1 {
		return fmt.Errorf("%w: output shape %v", inference.ErrEmptyOutput, m.OutputShape)
	}
	if err := m.InputEncoding.Validate(); err != nil {
		return fmt.Errorf("input encoding: %w", err)
	}
	if err := m.OutputEncoding.Validate(); err != nil {
		return fmt.Errorf("output encoding: %w", err)
	}
	return nil
}

// Grid returns the model input width and height. Supported layouts are
// NCHW [1,1,H,W], NHWC [1,H,W,1] and [1,H,W].
func (m Metadata) Grid() (width, height int, err error) {
	s := m.InputShape
	switch {
	case len(s) == 4 && s[0] == 1 && s[1] == 1:
		return int(s[3]), int(s[2]), nil
	case len(s) == 4 && s[0] == 1 && s[3] == 1:
		return int(s[2]), int(s[1]), nil
	case len(s) == 3 && s[0] == 1:
		return int(s[2]), int(s[1]), nil
	}
	return 0, 0, fmt.Errorf("%w: unsupported input shape %v", inference.ErrInputDimension, s)
}

func elements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
