// Package onnx runs ONNX models through onnxruntime. Tensor shapes and
// encodings come from a Metadata sidecar.
package onnx

import (
	"errors"
	"fmt"
	"sync"

	"birdgate/internal/inference"

	ort "github.com/yalue/onnxruntime_go"
)

// Options configures the onnxruntime environment.
type Options struct {
	// SharedLibraryPath points at libonnxruntime. Empty uses the platform default.
	SharedLibraryPath string
}

var envOnce sync.Once
var envErr error

func initEnvironment(opts Options) error {
	envOnce.Do(func() {
		if opts.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(opts.SharedLibraryPath)
		}
		if !ort.IsInitialized() {
			envErr = ort.InitializeEnvironment()
		}
	})
	if envErr != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", envErr)
	}
	return nil
}

// Engine is an onnxruntime session with pre-allocated input and output tensors.
type Engine struct {
	session *ort.AdvancedSession
	meta    Metadata

	width, height int

	inputTensor  ort.ArbitraryTensor
	outputTensor ort.ArbitraryTensor

	inF32  *ort.Tensor[float32]
	inU8   *ort.Tensor[uint8]
	inI8   *ort.Tensor[int8]
	outF32 *ort.Tensor[float32]
	outU8  *ort.Tensor[uint8]
	outI8  *ort.Tensor[int8]
}

// Loader returns an inference.Loader bound to meta.
func Loader(meta Metadata, opts Options) inference.Loader {
	return func(model []byte) (inference.Engine, error) {
		return New(model, meta, opts)
	}
}

// New creates a session for an in-memory model.
func New(modelData []byte, meta Metadata, opts Options) (*Engine, error) {
	meta.applyDefaults()
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if err := initEnvironment(opts); err != nil {
		return nil, err
	}

	e := &Engine{meta: meta}
	e.width, e.height, _ = meta.Grid()

	var err error
	if err = e.allocInput(ort.NewShape(meta.InputShape...)); err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	if err = e.allocOutput(ort.NewShape(meta.OutputShape...)); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	e.session, err = ort.NewAdvancedSessionWithONNXData(modelData,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{e.inputTensor}, []ort.ArbitraryTensor{e.outputTensor},
		nil)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return e, nil
}

func (e *Engine) allocInput(shape ort.Shape) error {
	var err error
	switch e.meta.InputEncoding.Type {
	case inference.Float32:
		e.inF32, err = ort.NewEmptyTensor[float32](shape)
		e.inputTensor = e.inF32
	case inference.UInt8:
		e.inU8, err = ort.NewEmptyTensor[uint8](shape)
		e.inputTensor = e.inU8
	case inference.Int8:
		e.inI8, err = ort.NewEmptyTensor[int8](shape)
		e.inputTensor = e.inI8
	default:
		return inference.ErrUnsupportedEncoding
	}
	if err != nil {
		e.inputTensor = nil
	}
	return err
}

func (e *Engine) allocOutput(shape ort.Shape) error {
	var err error
	switch e.meta.OutputEncoding.Type {
	case inference.Float32:
		e.outF32, err = ort.NewEmptyTensor[float32](shape)
		e.outputTensor = e.outF32
	case inference.UInt8:
		e.outU8, err = ort.NewEmptyTensor[uint8](shape)
		e.outputTensor = e.outU8
	case inference.Int8:
		e.outI8, err = ort.NewEmptyTensor[int8](shape)
		e.outputTensor = e.outI8
	default:
		return inference.ErrUnsupportedEncoding
	}
	if err != nil {
		e.outputTensor = nil
	}
	return err
}

// Metadata returns the sidecar the engine was built with.
func (e *Engine) Metadata() Metadata {
	return e.meta
}

// Input returns a view over the input tensor data.
func (e *Engine) Input() (*inference.InputTensor, error) {
	if e.session == nil {
		return nil, errors.New("engine closed")
	}
	view := &inference.InputTensor{Width: e.width, Height: e.height, Encoding: e.meta.InputEncoding}
	switch {
	case e.inF32 != nil:
		view.Float32 = e.inF32.GetData()
	case e.inU8 != nil:
		view.UInt8 = e.inU8.GetData()
	case e.inI8 != nil:
		view.Int8 = e.inI8.GetData()
	}
	return view, nil
}

// Output returns a view over the output tensor data.
func (e *Engine) Output() (*inference.OutputTensor, error) {
	if e.session == nil {
		return nil, errors.New("engine closed")
	}
	view := &inference.OutputTensor{Encoding: e.meta.OutputEncoding}
	switch {
	case e.outF32 != nil:
		view.Float32 = e.outF32.GetData()
	case e.outU8 != nil:
		view.UInt8 = e.outU8.GetData()
	case e.outI8 != nil:
		view.Int8 = e.outI8.GetData()
	}
	return view, nil
}

// Invoke runs the session.
func (e *Engine) Invoke() error {
	if e.session == nil {
		return errors.New("engine closed")
	}
	if err := e.session.Run(); err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}
	return nil
}

// Close destroys the session and tensors. The shared environment stays up
// for the life of the process.
func (e *Engine) Close() error {
	var errs []error
	if e.session != nil {
		errs = append(errs, e.session.Destroy())
		e.session = nil
	}
	for _, t := range []ort.ArbitraryTensor{e.inputTensor, e.outputTensor} {
		if t != nil {
			errs = append(errs, t.Destroy())
		}
	}
	e.inputTensor, e.outputTensor = nil, nil
	e.inF32, e.inU8, e.inI8 = nil, nil, nil
	e.outF32, e.outU8, e.outI8 = nil, nil, nil
	return errors.Join(errs...)
}
