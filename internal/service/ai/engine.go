package ai

import (
	"errors"
	"fmt"
	"os"

	"birdgate/internal/config"
	"birdgate/internal/inference"
	"birdgate/internal/inference/onnx"
	"birdgate/internal/inference/tflite"
	"birdgate/internal/logger"
)

var errAIDisabled = errors.New("AI disabled by configuration")

// OpenHandle loads the model configured in cfg with the selected backend.
// It always returns a usable handle; on error the handle is Unavailable.
func OpenHandle(cfg *config.Config, logger *logger.Logger) (*inference.Handle, error) {
	if !cfg.AIEnabled {
		return inference.UnavailableHandle(), fmt.Errorf("%w: %w", inference.ErrEngineUnavailable, errAIDisabled)
	}

	info, err := os.Stat(cfg.ModelPath)
	if err != nil {
		return inference.UnavailableHandle(), fmt.Errorf("%w: model file not found: %s", inference.ErrEngineUnavailable, cfg.ModelPath)
	}

	loader, err := loaderFor(cfg, logger)
	if err != nil {
		return inference.UnavailableHandle(), fmt.Errorf("%w: %w", inference.ErrEngineUnavailable, err)
	}

	model, err := os.ReadFile(cfg.ModelPath)
	if err != nil {
		return inference.UnavailableHandle(), fmt.Errorf("%w: failed to read model: %w", inference.ErrEngineUnavailable, err)
	}

	logger.Info("=== Initializing Bird AI ===")
	logger.Info("Model: %s (%d bytes), backend %s", cfg.ModelPath, info.Size(), cfg.EngineBackend)

	return inference.Open(loader, model)
}

func loaderFor(cfg *config.Config, logger *logger.Logger) (inference.Loader, error) {
	switch cfg.EngineBackend {
	case config.BackendTFLite:
		return tflite.Loader(tflite.Options{
			NumThreads: cfg.NumThreads,
			ErrorLog:   logger.Warning,
		}), nil
	case config.BackendONNX:
		if cfg.ModelMetadataPath == "" {
			return nil, errors.New("MODEL_METADATA_PATH is required for the onnx backend")
		}
		meta, err := onnx.LoadMetadata(cfg.ModelMetadataPath)
		if err != nil {
			return nil, err
		}
		logger.Info("ONNX classes: %v", meta.Classes)
		return onnx.Loader(meta, onnx.Options{SharedLibraryPath: cfg.ONNXLibraryPath}), nil
	}
	return nil, fmt.Errorf("unknown engine backend %q", cfg.EngineBackend)
}
