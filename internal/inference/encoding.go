package inference

import (
	"fmt"
	"math"
	"strings"
)

// DataType identifies how elements of a tensor are stored.
type DataType int

const (
	Float32 DataType = iota + 1
	UInt8
	Int8
)

func (t DataType) String() string {
	switch t {
	case Float32:
		return "float32"
	case UInt8:
		return "uint8"
	case Int8:
		return "int8"
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// MarshalText encodes t by name so model metadata files stay readable.
func (t DataType) MarshalText() ([]byte, error) {
	switch t {
	case Float32, UInt8, Int8:
		return []byte(t.String()), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, t)
}

// UnmarshalText accepts the names produced by MarshalText.
func (t *DataType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "float32", "float":
		*t = Float32
	case "uint8":
		*t = UInt8
	case "int8":
		*t = Int8
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEncoding, text)
	}
	return nil
}

// Encoding describes the numeric representation of a tensor.
// Scale and ZeroPoint are only meaningful for UInt8 and Int8, where
// stored = round(value/Scale) + ZeroPoint.
type Encoding struct {
	Type      DataType `json:"type"`
	Scale     float32  `json:"scale,omitempty"`
	ZeroPoint int32    `json:"zero_point,omitempty"`
}

// Float32Encoding returns the encoding of an unquantized float tensor.
func Float32Encoding() Encoding {
	return Encoding{Type: Float32}
}

// UInt8Encoding returns an unsigned 8-bit affine quantized encoding.
func UInt8Encoding(scale float32, zeroPoint int32) Encoding {
	return Encoding{Type: UInt8, Scale: scale, ZeroPoint: zeroPoint}
}

// Int8Encoding returns a signed 8-bit affine quantized encoding.
func Int8Encoding(scale float32, zeroPoint int32) Encoding {
	return Encoding{Type: Int8, Scale: scale, ZeroPoint: zeroPoint}
}

// Validate checks the encoding tag and, for quantized types, that scale is
// positive and the zero point lies in the stored range.
func (e Encoding) Validate() error {
	switch e.Type {
	case Float32:
		return nil
	case UInt8, Int8:
		if !(e.Scale > 0) || math.IsInf(float64(e.Scale), 0) {
			return fmt.Errorf("%w: %s scale must be positive, got %v", ErrUnsupportedEncoding, e.Type, e.Scale)
		}
		if lo, hi := e.Type.bounds(); e.ZeroPoint < lo || e.ZeroPoint > hi {
			return fmt.Errorf("%w: %s zero point %d outside [%d,%d]", ErrUnsupportedEncoding, e.Type, e.ZeroPoint, lo, hi)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedEncoding, e.Type)
}

func (e Encoding) String() string {
	if e.Type == Float32 {
		return e.Type.String()
	}
	return fmt.Sprintf("%s(scale=%g, zero_point=%d)", e.Type, e.Scale, e.ZeroPoint)
}

// bounds returns the stored range of a quantized type.
func (t DataType) bounds() (lo, hi int32) {
	if t == Int8 {
		return math.MinInt8, math.MaxInt8
	}
	return 0, math.MaxUint8
}

// Quantize maps a real value onto the stored integer range of e.
// The result is clamped to the range of e.Type. Float32 encodings are rejected.
func Quantize(value float32, e Encoding) (int32, error) {
	if e.Type == Float32 {
		return 0, fmt.Errorf("%w: cannot quantize into %s", ErrUnsupportedEncoding, e.Type)
	}
	if err := e.Validate(); err != nil {
		return 0, err
	}
	return quantize(value, e), nil
}

func quantize(value float32, e Encoding) int32 {
	q := math.Round(float64(value)/float64(e.Scale)) + float64(e.ZeroPoint)
	lo, hi := e.Type.bounds()
	if q < float64(lo) {
		return lo
	}
	if q > float64(hi) {
		return hi
	}
	return int32(q)
}

// Dequantize maps a stored integer back to its real value: (stored - ZeroPoint) * Scale.
// For Float32 encodings the stored value is returned unchanged.
func Dequantize(stored int32, e Encoding) (float32, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	if e.Type == Float32 {
		return float32(stored), nil
	}
	return dequantize(stored, e), nil
}

func dequantize(stored int32, e Encoding) float32 {
	return float32((float64(stored) - float64(e.ZeroPoint)) * float64(e.Scale))
}

// NewEncoding builds an encoding from quantization parameters reported by
// an engine. Scale and zeroPoint are ignored for Float32.
func NewEncoding(t DataType, scale float64, zeroPoint int64) (Encoding, error) {
	if t == Float32 {
		return Float32Encoding(), nil
	}
	if zeroPoint < math.MinInt32 || zeroPoint > math.MaxInt32 {
		return Encoding{}, fmt.Errorf("%w: %s zero point %d overflows int32", ErrUnsupportedEncoding, t, zeroPoint)
	}
	e := Encoding{Type: t, Scale: float32(scale), ZeroPoint: int32(zeroPoint)}
	if err := e.Validate(); err != nil {
		return Encoding{}, err
	}
	return e, nil
}

// clamp01 restricts v to [0, 1]. NaN maps to 0.
func clamp01(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
