package inference

import "fmt"

// GrayscaleImage is a view over Width*Height 8-bit samples, row-major.
// The caller owns Pix.
type GrayscaleImage struct {
	Width  int
	Height int
	Pix    []byte
}

// NewGrayscaleImage wraps pix and checks that it holds exactly width*height samples.
func NewGrayscaleImage(pix []byte, width, height int) (GrayscaleImage, error) {
	img := GrayscaleImage{Width: width, Height: height, Pix: pix}
	if err := img.Validate(); err != nil {
		return GrayscaleImage{}, err
	}
	return img, nil
}

// Validate reports ErrInputDimension unless the image has positive size and a matching buffer.
func (g GrayscaleImage) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: source image is %dx%d", ErrInputDimension, g.Width, g.Height)
	}
	if len(g.Pix) != g.Width*g.Height {
		return fmt.Errorf("%w: source buffer holds %d bytes, want %d", ErrInputDimension, len(g.Pix), g.Width*g.Height)
	}
	return nil
}

// At returns the sample at column x, row y.
func (g GrayscaleImage) At(x, y int) byte {
	return g.Pix[y*g.Width+x]
}

// InputTensor is the model's input grid. Only the slice matching
// Encoding.Type is used; engines point it at their own tensor memory.
type InputTensor struct {
	Width    int
	Height   int
	Encoding Encoding

	Float32 []float32
	UInt8   []uint8
	Int8    []int8
}

// Area is the number of cells in the grid.
func (t *InputTensor) Area() int {
	return t.Width * t.Height
}

// Len is the length of the backing slice selected by the encoding.
func (t *InputTensor) Len() int {
	switch t.Encoding.Type {
	case Float32:
		return len(t.Float32)
	case UInt8:
		return len(t.UInt8)
	case Int8:
		return len(t.Int8)
	}
	return 0
}

// OutputTensor is the model's output vector, read-only for this package.
type OutputTensor struct {
	Encoding Encoding

	Float32 []float32
	UInt8   []uint8
	Int8    []int8
}

// Len is the number of elements in the slice selected by the encoding.
func (t *OutputTensor) Len() int {
	switch t.Encoding.Type {
	case Float32:
		return len(t.Float32)
	case UInt8:
		return len(t.UInt8)
	case Int8:
		return len(t.Int8)
	}
	return 0
}

// Value returns element i as a real number, dequantizing when needed.
// It does not clamp.
func (t *OutputTensor) Value(i int) (float32, error) {
	if err := t.Encoding.Validate(); err != nil {
		return 0, err
	}
	if i < 0 || i >= t.Len() {
		return 0, fmt.Errorf("output index %d out of range [0,%d)", i, t.Len())
	}
	switch t.Encoding.Type {
	case UInt8:
		return dequantize(int32(t.UInt8[i]), t.Encoding), nil
	case Int8:
		return dequantize(int32(t.Int8[i]), t.Encoding), nil
	}
	return t.Float32[i], nil
}
