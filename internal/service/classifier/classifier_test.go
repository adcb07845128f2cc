package classifier

import (
	"bytes"
	"errors"
	"testing"

	"birdgate/internal/inference"
	"birdgate/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine returns a fixed uint8 two-class output.
type stubEngine struct {
	in        inference.InputTensor
	out       inference.OutputTensor
	invokeErr error
}

func newStubEngine(scores ...uint8) *stubEngine {
	return &stubEngine{
		in: inference.InputTensor{
			Width: 64, Height: 64,
			Encoding: inference.Int8Encoding(1.0/255, -128),
			Int8:     make([]int8, 64*64),
		},
		out: inference.OutputTensor{
			Encoding: inference.UInt8Encoding(0.0039, 0),
			UInt8:    scores,
		},
	}
}

func (e *stubEngine) Input() (*inference.InputTensor, error)   { return &e.in, nil }
func (e *stubEngine) Output() (*inference.OutputTensor, error) { return &e.out, nil }
func (e *stubEngine) Invoke() error                            { return e.invokeErr }
func (e *stubEngine) Close() error                             { return nil }

func testLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := logger.New(t.TempDir(), &buf, &buf)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, &buf
}

func frame() inference.GrayscaleImage {
	return inference.GrayscaleImage{Width: 320, Height: 240, Pix: make([]byte, 320*240)}
}

func TestClassifyTwoClassQuantized(t *testing.T) {
	log, out := testLogger(t)
	c := New(inference.NewHandle(newStubEngine(10, 245)), Options{Threshold: 0.7, Backend: "tflite"}, log)

	v := c.Classify(frame())
	require.NoError(t, v.Err)
	require.NotNil(t, v.Confidence)
	assert.InDelta(t, 0.9555, float32(*v.Confidence), 1e-4)
	require.NotNil(t, v.Absent)
	assert.InDelta(t, 0.039, float32(*v.Absent), 1e-4)
	assert.True(t, v.Bird)
	assert.True(t, v.Available)
	assert.Equal(t, Label, v.Label)
	assert.Contains(t, out.String(), "95.5% bird")
}

func TestClassifyBelowThreshold(t *testing.T) {
	log, _ := testLogger(t)
	c := New(inference.NewHandle(newStubEngine(200, 60)), Options{Threshold: 0.7}, log)

	v := c.Classify(frame())
	require.NoError(t, v.Err)
	assert.False(t, v.Bird)
}

func TestClassifyFailsOpen(t *testing.T) {
	log, out := testLogger(t)

	t.Run("unavailable model", func(t *testing.T) {
		c := New(nil, Options{Threshold: 0.7}, log)
		v := c.Classify(frame())
		assert.Nil(t, v.Confidence)
		assert.False(t, v.Available)
		assert.True(t, v.Bird)
		assert.ErrorIs(t, v.Err, inference.ErrEngineUnavailable)
		assert.NotContains(t, out.String(), "falling back")
	})

	t.Run("invoke error", func(t *testing.T) {
		engine := newStubEngine(0, 0)
		engine.invokeErr = errors.New("arena exhausted")
		c := New(inference.NewHandle(engine), Options{Threshold: 1}, log)
		v := c.Classify(frame())
		assert.Nil(t, v.Confidence)
		assert.True(t, v.Available)
		assert.True(t, v.Bird)
		assert.Contains(t, v.ErrorText(), "arena exhausted")
		assert.Contains(t, out.String(), "falling back")
	})

	t.Run("empty output", func(t *testing.T) {
		c := New(inference.NewHandle(newStubEngine()), Options{Threshold: 0.7}, log)
		v := c.Classify(frame())
		assert.ErrorIs(t, v.Err, inference.ErrEmptyOutput)
		assert.True(t, v.Bird)
	})
}

func TestStatus(t *testing.T) {
	log, _ := testLogger(t)
	c := New(inference.NewHandle(newStubEngine(1, 2)), Options{Threshold: 0.7, Backend: "tflite", ModelPath: "m.tflite"}, log)

	assert.Equal(t, Status{
		Availability: "available",
		Backend:      "tflite",
		ModelPath:    "m.tflite",
		InputWidth:   64,
		InputHeight:  64,
		Threshold:    0.7,
	}, c.Status())

	require.NoError(t, c.Close())
	assert.Equal(t, "unavailable", c.Status().Availability)
	assert.Equal(t, 0, c.Status().InputWidth)
}
