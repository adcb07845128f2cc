package inference

import "fmt"

// Resample fills dst from src with nearest-neighbour sampling and encodes
// each sample according to dst.Encoding.
//
// Destination cell (x, y) takes source pixel
// (x*src.Width/dst.Width, y*src.Height/dst.Height) using truncating integer
// division. There is no interpolation.
func Resample(src GrayscaleImage, dst *InputTensor) error {
	if dst == nil || dst.Width <= 0 || dst.Height <= 0 {
		w, h := 0, 0
		if dst != nil {
			w, h = dst.Width, dst.Height
		}
		return fmt.Errorf("%w: model grid is %dx%d", ErrInputDimension, w, h)
	}
	if err := dst.Encoding.Validate(); err != nil {
		return err
	}
	if err := src.Validate(); err != nil {
		return err
	}
	if dst.Len() < dst.Area() {
		return fmt.Errorf("%w: input tensor holds %d elements, grid needs %d", ErrInputDimension, dst.Len(), dst.Area())
	}

	// Column map is shared by every row.
	cols := make([]int, dst.Width)
	for x := range cols {
		cols[x] = x * src.Width / dst.Width
	}

	enc := dst.Encoding
	for y := 0; y < dst.Height; y++ {
		row := src.Pix[(y*src.Height/dst.Height)*src.Width:]
		base := y * dst.Width
		for x, sx := range cols {
			normalized := float32(row[sx]) / 255.0
			switch enc.Type {
			case Float32:
				dst.Float32[base+x] = normalized
			case UInt8:
				dst.UInt8[base+x] = uint8(quantize(normalized, enc))
			case Int8:
				dst.Int8[base+x] = int8(quantize(normalized, enc))
			}
		}
	}
	return nil
}
