package inference

import "fmt"

// GridNHWC returns the grid of a single-channel image tensor shaped
// [1,H,W,1], [1,H,W] or [H,W].
func GridNHWC(dims []int) (width, height int, err error) {
	switch {
	case len(dims) == 4 && dims[0] == 1 && dims[3] == 1:
		width, height = dims[2], dims[1]
	case len(dims) == 3 && dims[0] == 1:
		width, height = dims[2], dims[1]
	case len(dims) == 2:
		width, height = dims[1], dims[0]
	default:
		return 0, 0, fmt.Errorf("%w: unsupported input shape %v", ErrInputDimension, dims)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: unsupported input shape %v", ErrInputDimension, dims)
	}
	return width, height, nil
}
