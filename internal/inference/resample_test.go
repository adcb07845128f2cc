package inference

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradientImage(w, h int) GrayscaleImage {
	pix := make([]byte, w*h)
	for i := range pix {
		pix[i] = byte(i % 251)
	}
	return GrayscaleImage{Width: w, Height: h, Pix: pix}
}

func constantImage(w, h int, v byte) GrayscaleImage {
	pix := make([]byte, w*h)
	for i := range pix {
		pix[i] = v
	}
	return GrayscaleImage{Width: w, Height: h, Pix: pix}
}

func TestResampleNearestNeighbourMapping(t *testing.T) {
	sizes := []struct{ sw, sh, mw, mh int }{
		{320, 240, 64, 64},
		{64, 64, 64, 64},
		{7, 5, 64, 64},
		{1, 1, 3, 2},
		{641, 479, 17, 13},
	}

	for _, s := range sizes {
		src := gradientImage(s.sw, s.sh)
		dst := &InputTensor{Width: s.mw, Height: s.mh, Encoding: Float32Encoding(), Float32: make([]float32, s.mw*s.mh)}
		require.NoError(t, Resample(src, dst))

		want := make([]float32, s.mw*s.mh)
		for y := 0; y < s.mh; y++ {
			for x := 0; x < s.mw; x++ {
				want[y*s.mw+x] = float32(src.At(x*s.sw/s.mw, y*s.sh/s.mh)) / 255.0
			}
		}
		if diff := cmp.Diff(want, dst.Float32); diff != "" {
			t.Errorf("%dx%d -> %dx%d mismatch (-want +got):\n%s", s.sw, s.sh, s.mw, s.mh, diff)
		}
	}
}

func TestResampleConstantFloat(t *testing.T) {
	src := constantImage(320, 240, 128)
	dst := &InputTensor{Width: 64, Height: 64, Encoding: Float32Encoding(), Float32: make([]float32, 64*64)}

	require.NoError(t, Resample(src, dst))
	for i, v := range dst.Float32 {
		if !assert.InDelta(t, 0.5019, v, 1e-4, "cell %d", i) {
			break
		}
	}
}

func TestResampleQuantizedInputs(t *testing.T) {
	src := constantImage(320, 240, 255)

	u8 := &InputTensor{Width: 64, Height: 64, Encoding: UInt8Encoding(0.00392157, 0), UInt8: make([]uint8, 64*64)}
	require.NoError(t, Resample(src, u8))
	assert.Equal(t, uint8(255), u8.UInt8[0])
	assert.Equal(t, uint8(255), u8.UInt8[len(u8.UInt8)-1])

	i8 := &InputTensor{Width: 64, Height: 64, Encoding: Int8Encoding(1.0/255, -128), Int8: make([]int8, 64*64)}
	require.NoError(t, Resample(src, i8))
	assert.Equal(t, int8(127), i8.Int8[0])

	black := constantImage(10, 10, 0)
	require.NoError(t, Resample(black, i8))
	assert.Equal(t, int8(-128), i8.Int8[100])
}

func TestResampleHonoursAffineParameters(t *testing.T) {
	// scale 1/127.5 with zero point 0 maps [0,1] onto [0,127].
	src := constantImage(4, 4, 255)
	dst := &InputTensor{Width: 2, Height: 2, Encoding: Int8Encoding(1/127.5, 0), Int8: make([]int8, 4)}
	require.NoError(t, Resample(src, dst))
	assert.Equal(t, []int8{127, 127, 127, 127}, dst.Int8)

	src = constantImage(4, 4, 0)
	dst = &InputTensor{Width: 2, Height: 2, Encoding: UInt8Encoding(0.5, 7), UInt8: make([]uint8, 4)}
	require.NoError(t, Resample(src, dst))
	assert.Equal(t, []uint8{7, 7, 7, 7}, dst.UInt8)
}

func TestResampleErrors(t *testing.T) {
	src := constantImage(8, 8, 1)

	tests := []struct {
		name string
		src  GrayscaleImage
		dst  *InputTensor
		want error
	}{
		{"nil dest", src, nil, ErrInputDimension},
		{"zero width", src, &InputTensor{Width: 0, Height: 4, Encoding: Float32Encoding()}, ErrInputDimension},
		{"zero height", src, &InputTensor{Width: 4, Height: 0, Encoding: Float32Encoding()}, ErrInputDimension},
		{"short buffer", src, &InputTensor{Width: 4, Height: 4, Encoding: Float32Encoding(), Float32: make([]float32, 15)}, ErrInputDimension},
		{"unknown encoding", src, &InputTensor{Width: 4, Height: 4, Encoding: Encoding{Type: 9}}, ErrUnsupportedEncoding},
		{"bad scale", src, &InputTensor{Width: 4, Height: 4, Encoding: UInt8Encoding(0, 0), UInt8: make([]uint8, 16)}, ErrUnsupportedEncoding},
		{"empty source", GrayscaleImage{}, &InputTensor{Width: 4, Height: 4, Encoding: Float32Encoding(), Float32: make([]float32, 16)}, ErrInputDimension},
		{"source size mismatch", GrayscaleImage{Width: 3, Height: 3, Pix: make([]byte, 8)}, &InputTensor{Width: 4, Height: 4, Encoding: Float32Encoding(), Float32: make([]float32, 16)}, ErrInputDimension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Resample(tt.src, tt.dst), tt.want)
		})
	}
}

func TestNewGrayscaleImage(t *testing.T) {
	img, err := NewGrayscaleImage(make([]byte, 6), 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Width)

	_, err = NewGrayscaleImage(make([]byte, 5), 3, 2)
	assert.ErrorIs(t, err, ErrInputDimension)
}
