package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendTFLite = "tflite"
	BackendONNX   = "onnx"
)

type Config struct {
	Port        int
	Password    string
	CamerasPort int
	CameraNames map[string]string // camera IP -> display name

	AIEnabled           bool
	EngineBackend       string
	ModelPath           string
	ModelMetadataPath   string // ONNX sidecar with shapes and encodings
	ONNXLibraryPath     string
	NumThreads          int
	ConfidenceThreshold float32 // inclusive, in [0,1]

	MotionThreshold    int // changed pixels needed to report motion
	MotionPixelDelta   int // per-pixel difference counted as a change
	ProcessingInterval int // process every Nth frame per camera
	QueueSize          int

	ImageDirectory           string
	DatabasePath             string
	ImageBufferLimit         int
	ImageBufferFlushInterval int // seconds
	LogDirectory             string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	return &Config{
		Port:        getEnvAsInt("PORT", 8080),
		Password:    getEnv("PASSWORD", "birdgate"),
		CamerasPort: getEnvAsInt("CAMERAS_PORT", 9999),
		CameraNames: parseCameraNames(getEnv("CAMERA_NAMES", "")),

		AIEnabled:           getEnvAsBool("AI_ENABLED", true),
		EngineBackend:       strings.ToLower(getEnv("ENGINE_BACKEND", BackendTFLite)),
		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "models", "bird_model_small.tflite")),
		ModelMetadataPath:   getEnv("MODEL_METADATA_PATH", ""),
		ONNXLibraryPath:     getEnv("ONNX_LIBRARY_PATH", ""),
		NumThreads:          getEnvAsInt("NUM_THREADS", 1),
		ConfidenceThreshold: getEnvAsFloat32("AI_CONFIDENCE_THRESHOLD", 0.70),

		MotionThreshold:    getEnvAsInt("MOTION_THRESHOLD", 500),
		MotionPixelDelta:   getEnvAsInt("MOTION_PIXEL_DELTA", 30),
		ProcessingInterval: getEnvAsInt("PROCESSING_INTERVAL", 3),
		QueueSize:          getEnvAsInt("QUEUE_SIZE", 16),

		ImageDirectory:           getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		DatabasePath:             getEnv("DB_PATH", filepath.Join(".", "data", "birdgate.db")),
		ImageBufferLimit:         getEnvAsInt("BUFFER_LIMIT", 10),
		ImageBufferFlushInterval: getEnvAsInt("FLUSH_INTERVAL", 30),
		LogDirectory:             getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

// Validate reports the first setting that would make the service misbehave.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("AI_CONFIDENCE_THRESHOLD must be in [0,1], got %v", c.ConfidenceThreshold)
	}
	switch c.EngineBackend {
	case BackendTFLite, BackendONNX:
	default:
		return fmt.Errorf("unknown ENGINE_BACKEND %q", c.EngineBackend)
	}
	if c.ProcessingInterval < 1 {
		return fmt.Errorf("PROCESSING_INTERVAL must be at least 1, got %d", c.ProcessingInterval)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("QUEUE_SIZE must be at least 1, got %d", c.QueueSize)
	}
	if c.ImageBufferFlushInterval < 1 {
		return fmt.Errorf("FLUSH_INTERVAL must be at least 1, got %d", c.ImageBufferFlushInterval)
	}
	if c.MotionPixelDelta < 0 || c.MotionPixelDelta > 255 {
		return fmt.Errorf("MOTION_PIXEL_DELTA must be in [0,255], got %d", c.MotionPixelDelta)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatValue)
		}
	}
	return defaultValue
}

// parseCameraNames parses "192.168.1.20=garden,192.168.1.21=roof".
func parseCameraNames(value string) map[string]string {
	names := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		ip, name, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || ip == "" || name == "" {
			continue
		}
		names[strings.TrimSpace(ip)] = strings.TrimSpace(name)
	}
	return names
}
