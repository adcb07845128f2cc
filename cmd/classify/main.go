package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"birdgate/internal/config"
	"birdgate/internal/logger"
	"birdgate/internal/service/ai"
)

type result struct {
	File       string   `json:"file"`
	Confidence *float32 `json:"confidence"`
	Available  bool     `json:"available"`
	Bird       bool     `json:"bird"`
	Error      string   `json:"error,omitempty"`
	readFailed bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code so deferred cleanup completes first.
func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()

	fs := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.EngineBackend, "backend", cfg.EngineBackend, "Inference backend (tflite or onnx)")
	fs.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "Model file")
	fs.StringVar(&cfg.ModelMetadataPath, "metadata", cfg.ModelMetadataPath, "ONNX metadata sidecar")
	fs.StringVar(&cfg.ONNXLibraryPath, "onnx-lib", cfg.ONNXLibraryPath, "onnxruntime shared library")
	threshold := fs.Float64("threshold", float64(cfg.ConfidenceThreshold), "Decision threshold in [0,1]")
	jsonOut := fs.Bool("json", false, "Print one JSON object per file")
	verbose := fs.Bool("v", false, "Print log output")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] image.jpg...\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	cfg.AIEnabled = true
	cfg.ConfidenceThreshold = float32(*threshold)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 2
	}

	out := io.Discard
	if *verbose {
		out = stderr
	}
	logDir, err := os.MkdirTemp("", "birdgate-classify")
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create log directory: %v\n", err)
		return 1
	}
	defer os.RemoveAll(logDir)
	lg, err := logger.New(logDir, out, out)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer lg.Close()

	detector := ai.NewDetectorService(cfg, lg)
	defer detector.Close()

	status := detector.Status()
	if status.Availability != "available" {
		fmt.Fprintf(stderr, "⚠️  Model unavailable, every image passes (motion-only behaviour)\n")
	}

	encoder := json.NewEncoder(stdout)
	failed := 0
	for _, path := range fs.Args() {
		r := classify(detector, path)
		if r.readFailed {
			failed++
		}

		if *jsonOut {
			if err := encoder.Encode(r); err != nil {
				fmt.Fprintf(stderr, "Failed to encode result: %v\n", err)
				return 1
			}
			continue
		}
		printResult(stdout, r, cfg.ConfidenceThreshold)
	}

	if failed > 0 {
		return 1
	}
	return 0
}

func classify(detector *ai.DetectorService, path string) result {
	r := result{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		r.Error = err.Error()
		r.readFailed = true
		return r
	}
	frame, err := detector.DecodeGrayscale(data)
	if err != nil {
		r.Error = err.Error()
		r.readFailed = true
		return r
	}

	verdict := detector.DetectBird(frame)
	r.Available = verdict.Available
	r.Bird = verdict.Bird
	r.Error = verdict.ErrorText()
	if verdict.Confidence != nil {
		conf := float32(*verdict.Confidence)
		r.Confidence = &conf
	}
	return r
}

func printResult(w io.Writer, r result, threshold float32) {
	decision := "no bird"
	if r.Bird {
		decision = "BIRD"
	}

	switch {
	case r.Confidence != nil:
		fmt.Fprintf(w, "%s: %.1f%% (threshold %.0f%%) -> %s\n", r.File, *r.Confidence*100, threshold*100, decision)
	case r.readFailed:
		fmt.Fprintf(w, "%s: error: %s\n", r.File, r.Error)
	default:
		fmt.Fprintf(w, "%s: n/a (AI unavailable) -> %s\n", r.File, decision)
	}
}
