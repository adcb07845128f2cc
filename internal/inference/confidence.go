package inference

import "fmt"

// Confidence is the probability that the target class is present, in [0, 1].
type Confidence float32

// Percent formats c on a 0-100 scale for log lines.
func (c Confidence) Percent() float32 {
	return float32(c) * 100
}

const (
	// AbsentIndex is the "target absent" element of a two-class output.
	AbsentIndex = 0
	// PresentIndex is the "target present" element of a two-class output.
	// The order must match the label order the model was trained with.
	PresentIndex = 1
)

// ExtractConfidence reads the target-class score from out.
//
// Outputs with two or more elements are treated as [absent, present, ...]
// and element PresentIndex is used; a single element is a sigmoid score.
// Quantized values are dequantized, and the result is clamped to [0, 1].
func ExtractConfidence(out *OutputTensor) (Confidence, error) {
	if out == nil {
		return 0, ErrEmptyOutput
	}
	if err := out.Encoding.Validate(); err != nil {
		return 0, err
	}

	n := out.Len()
	var idx int
	switch {
	case n == 0:
		return 0, ErrEmptyOutput
	case n == 1:
		idx = 0
	default:
		idx = PresentIndex
	}

	v, err := out.Value(idx)
	if err != nil {
		return 0, fmt.Errorf("read output element %d: %w", idx, err)
	}
	return Confidence(clamp01(v)), nil
}

// IsTargetPresent applies the gating decision. A nil confidence means the
// classifier could not run for this request; the result is then true so the
// caller falls back on motion detection alone. Otherwise the decision is
// confidence >= threshold.
func IsTargetPresent(c *Confidence, threshold float32) bool {
	if c == nil {
		return true
	}
	return float32(*c) >= threshold
}
