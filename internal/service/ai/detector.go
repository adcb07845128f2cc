package ai

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"birdgate/internal/config"
	"birdgate/internal/inference"
	"birdgate/internal/logger"
	"birdgate/internal/service/classifier"

	"gocv.io/x/gocv"
)

// CameraState holds motion detection state for a single camera.
type CameraState struct {
	previousMat gocv.Mat
	hasPrevious bool
	mutex       sync.Mutex
}

// DetectorService decodes camera frames, detects motion with frame
// differencing and confirms motion with the bird classifier.
type DetectorService struct {
	cameraStates     map[string]*CameraState
	statesMutex      sync.RWMutex
	classifier       *classifier.Classifier
	motionThreshold  int
	motionPixelDelta float32
	logger           *logger.Logger
}

// NewDetectorService creates a detector and tries to load the configured
// model. A load failure is logged and the service keeps running without AI.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) *DetectorService {
	handle, err := OpenHandle(cfg, logger)
	switch {
	case errors.Is(err, errAIDisabled):
		logger.Info("Bird AI: DISABLED (using motion-only detection)")
	case err != nil:
		logger.Warning("Could not initialize bird classifier: %v", err)
	default:
		w, h := handle.InputShape()
		logger.Info("Bird AI initialized successfully (%dx%d input)", w, h)
	}

	return NewDetectorServiceWithClassifier(cfg, logger, classifier.New(handle, classifier.Options{
		Threshold: cfg.ConfidenceThreshold,
		Backend:   cfg.EngineBackend,
		ModelPath: cfg.ModelPath,
	}, logger))
}

// NewDetectorServiceWithClassifier creates a detector around an existing classifier.
func NewDetectorServiceWithClassifier(cfg *config.Config, logger *logger.Logger, c *classifier.Classifier) *DetectorService {
	return &DetectorService{
		cameraStates:     make(map[string]*CameraState),
		classifier:       c,
		motionThreshold:  cfg.MotionThreshold,
		motionPixelDelta: float32(cfg.MotionPixelDelta),
		logger:           logger,
	}
}

// Classifier exposes the underlying classifier.
func (s *DetectorService) Classifier() *classifier.Classifier {
	return s.classifier
}

// DecodeGrayscale decodes an encoded image (JPEG, PNG) into an 8-bit grayscale frame.
func (s *DetectorService) DecodeGrayscale(imageBytes []byte) (inference.GrayscaleImage, error) {
	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadGrayScale)
	if err != nil {
		return inference.GrayscaleImage{}, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return inference.GrayscaleImage{}, fmt.Errorf("decoded image is empty")
	}

	return inference.NewGrayscaleImage(mat.ToBytes(), mat.Cols(), mat.Rows())
}

// DetectMotion compares frame with the previous frame of the same camera and
// reports motion when more than the configured number of pixels changed.
// The first frame of a camera, or a frame whose size differs from the
// previous one, only sets the baseline.
func (s *DetectorService) DetectMotion(frame inference.GrayscaleImage, cameraID string) (bool, error) {
	if err := frame.Validate(); err != nil {
		return false, err
	}

	state := s.getCameraState(cameraID)
	state.mutex.Lock()
	defer state.mutex.Unlock()

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC1, frame.Pix)
	if err != nil {
		return false, fmt.Errorf("failed to wrap frame: %w", err)
	}
	defer mat.Close()

	if !state.hasPrevious || state.previousMat.Cols() != mat.Cols() || state.previousMat.Rows() != mat.Rows() {
		if state.hasPrevious {
			state.previousMat.Close()
			s.logger.Info("Frame size changed for camera %s, resetting motion baseline", cameraID)
		} else {
			s.logger.Info("Initialized motion detection for camera: %s", cameraID)
		}
		state.previousMat = mat.Clone()
		state.hasPrevious = true
		return false, nil
	}

	diff := gocv.NewMat()
	defer diff.Close()
	if err := gocv.AbsDiff(state.previousMat, mat, &diff); err != nil {
		return false, fmt.Errorf("failed to compute absolute difference: %w", err)
	}

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, s.motionPixelDelta, 255, gocv.ThresholdBinary)

	changed := gocv.CountNonZero(thresh)

	state.previousMat.Close()
	state.previousMat = mat.Clone()

	motionDetected := changed > s.motionThreshold
	if motionDetected {
		s.logger.Info("Motion detected on %s: %d pixels changed", cameraID, changed)
	}
	return motionDetected, nil
}

// Status reports the classifier state.
func (s *DetectorService) Status() classifier.Status {
	return s.classifier.Status()
}

// DetectBird gates a motion frame through the classifier.
func (s *DetectorService) DetectBird(frame inference.GrayscaleImage) classifier.Verdict {
	return s.classifier.Classify(frame)
}

// Annotate draws the verdict onto the image and returns a re-encoded JPEG buffer.
func (s *DetectorService) Annotate(img []byte, verdict classifier.Verdict) ([]byte, error) {
	green := color.RGBA{R: 0, G: 200, B: 0, A: 0}
	amber := color.RGBA{R: 255, G: 170, B: 0, A: 0}

	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	label := "motion only (AI unavailable)"
	colour := amber
	if verdict.Confidence != nil {
		label = fmt.Sprintf("%s (%.1f%%)", verdict.Label, verdict.Confidence.Percent())
		colour = green
	}

	frame := image.Rect(1, 1, mat.Cols()-1, mat.Rows()-1)
	if err := gocv.Rectangle(&mat, frame, colour, 2); err != nil {
		return nil, fmt.Errorf("failed to draw rectangle: %w", err)
	}
	if err := gocv.PutText(&mat, label, image.Pt(8, 20), gocv.FontHersheySimplex, 0.5, colour, 1); err != nil {
		return nil, fmt.Errorf("failed to draw text: %w", err)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		s.logger.Error("Failed to encode image: %v", err)
		return nil, err
	}
	defer buf.Close()
	annotated := make([]byte, len(buf.GetBytes()))
	copy(annotated, buf.GetBytes())

	return annotated, nil
}

// Close releases per-camera baselines and the model.
func (s *DetectorService) Close() error {
	s.statesMutex.Lock()
	for id, state := range s.cameraStates {
		state.mutex.Lock()
		if state.hasPrevious {
			state.previousMat.Close()
			state.hasPrevious = false
		}
		state.mutex.Unlock()
		delete(s.cameraStates, id)
	}
	s.statesMutex.Unlock()
	return s.classifier.Close()
}

// getCameraState returns the per-camera state, creating it when absent.
func (s *DetectorService) getCameraState(cameraID string) *CameraState {
	s.statesMutex.RLock()
	state, exists := s.cameraStates[cameraID]
	s.statesMutex.RUnlock()

	if exists {
		return state
	}

	s.statesMutex.Lock()
	defer s.statesMutex.Unlock()
	// Another goroutine may have created it meanwhile.
	if state, exists := s.cameraStates[cameraID]; exists {
		return state
	}

	state = &CameraState{}
	s.cameraStates[cameraID] = state
	s.logger.Info("Created motion detection state for camera: %s", cameraID)

	return state
}
