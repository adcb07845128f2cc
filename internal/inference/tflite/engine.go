// Package tflite runs TensorFlow Lite models through the C API and exposes
// their first input and output tensors as inference views.
package tflite

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"birdgate/internal/inference"

	"github.com/mattn/go-tflite"
)

// Options configures the interpreter.
type Options struct {
	NumThreads int
	// ErrorLog receives messages from the TFLite error reporter. May be nil.
	ErrorLog func(format string, v ...interface{})
}

// Engine wraps a TFLite interpreter with one grayscale image input.
type Engine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter

	input  *tflite.Tensor
	output *tflite.Tensor

	width, height int
	inEnc, outEnc inference.Encoding

	mu       sync.Mutex
	lastErrs []string
}

// Loader returns an inference.Loader that builds Engines with opts.
func Loader(opts Options) inference.Loader {
	return func(model []byte) (inference.Engine, error) {
		return New(model, opts)
	}
}

// New loads a flatbuffer model and allocates its tensors.
func New(modelData []byte, opts Options) (*Engine, error) {
	e := &Engine{}

	e.model = tflite.NewModel(modelData)
	if e.model == nil {
		return nil, errors.New("cannot load tflite model")
	}

	e.options = tflite.NewInterpreterOptions()
	if opts.NumThreads > 0 {
		e.options.SetNumThread(opts.NumThreads)
	}
	e.options.SetErrorReporter(func(msg string, _ interface{}) {
		e.mu.Lock()
		e.lastErrs = append(e.lastErrs, msg)
		e.mu.Unlock()
		if opts.ErrorLog != nil {
			opts.ErrorLog("tflite: %s", msg)
		}
	}, nil)

	e.interpreter = tflite.NewInterpreter(e.model, e.options)
	if e.interpreter == nil {
		e.Close()
		return nil, errors.New("cannot create tflite interpreter")
	}
	if status := e.interpreter.AllocateTensors(); status != tflite.OK {
		err := e.reporterError("allocate tensors")
		e.Close()
		return nil, err
	}

	if err := e.bindTensors(); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) bindTensors() error {
	if e.interpreter.GetInputTensorCount() < 1 || e.interpreter.GetOutputTensorCount() < 1 {
		return errors.New("model has no input or output tensor")
	}
	e.input = e.interpreter.GetInputTensor(0)
	e.output = e.interpreter.GetOutputTensor(0)

	w, h, err := gridShape(e.input)
	if err != nil {
		return err
	}
	e.width, e.height = w, h

	if e.inEnc, err = encodingOf(e.input); err != nil {
		return fmt.Errorf("input tensor %q: %w", e.input.Name(), err)
	}
	if e.outEnc, err = encodingOf(e.output); err != nil {
		return fmt.Errorf("output tensor %q: %w", e.output.Name(), err)
	}
	return nil
}

func gridShape(t *tflite.Tensor) (width, height int, err error) {
	dims := make([]int, t.NumDims())
	for i := range dims {
		dims[i] = t.Dim(i)
	}
	return inference.GridNHWC(dims)
}

func dataType(t tflite.TensorType) (inference.DataType, bool) {
	switch t {
	case tflite.Float32:
		return inference.Float32, true
	case tflite.UInt8:
		return inference.UInt8, true
	case tflite.Int8:
		return inference.Int8, true
	}
	return 0, false
}

func encodingOf(t *tflite.Tensor) (inference.Encoding, error) {
	dt, ok := dataType(t.Type())
	if !ok {
		return inference.Encoding{}, fmt.Errorf("%w: tflite type %v", inference.ErrUnsupportedEncoding, t.Type())
	}
	q := t.QuantizationParams()
	return inference.NewEncoding(dt, q.Scale, int64(q.ZeroPoint))
}

// Input returns a view over the interpreter's input tensor memory.
func (e *Engine) Input() (*inference.InputTensor, error) {
	if e.input == nil {
		return nil, errors.New("engine closed")
	}
	view := &inference.InputTensor{Width: e.width, Height: e.height, Encoding: e.inEnc}
	switch e.inEnc.Type {
	case inference.Float32:
		view.Float32 = e.input.Float32s()
	case inference.UInt8:
		view.UInt8 = e.input.UInt8s()
	case inference.Int8:
		view.Int8 = e.input.Int8s()
	}
	return view, nil
}

// Output returns a view over the interpreter's output tensor memory.
func (e *Engine) Output() (*inference.OutputTensor, error) {
	if e.output == nil {
		return nil, errors.New("engine closed")
	}
	view := &inference.OutputTensor{Encoding: e.outEnc}
	switch e.outEnc.Type {
	case inference.Float32:
		view.Float32 = e.output.Float32s()
	case inference.UInt8:
		view.UInt8 = e.output.UInt8s()
	case inference.Int8:
		view.Int8 = e.output.Int8s()
	}
	return view, nil
}

// Invoke runs the graph once.
func (e *Engine) Invoke() error {
	if e.interpreter == nil {
		return errors.New("engine closed")
	}
	if status := e.interpreter.Invoke(); status != tflite.OK {
		return e.reporterError("invoke")
	}
	return nil
}

// Close frees the interpreter, options and model.
func (e *Engine) Close() error {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	e.input, e.output = nil, nil
	return nil
}

func (e *Engine) reporterError(op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.lastErrs) == 0 {
		return fmt.Errorf("tflite %s failed", op)
	}
	msg := strings.Join(e.lastErrs, "; ")
	e.lastErrs = e.lastErrs[:0]
	return fmt.Errorf("tflite %s failed: %s", op, msg)
}
