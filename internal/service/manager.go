package service

import (
	"sync"
	"time"

	"birdgate/internal/config"
	"birdgate/internal/dto"
	"birdgate/internal/inference"
	"birdgate/internal/logger"
	"birdgate/internal/service/classifier"

	"github.com/google/uuid"
)

// Detector is the frame analysis used by the pipeline.
type Detector interface {
	DecodeGrayscale(image []byte) (inference.GrayscaleImage, error)
	DetectMotion(frame inference.GrayscaleImage, camera string) (bool, error)
	DetectBird(frame inference.GrayscaleImage) classifier.Verdict
	Annotate(image []byte, verdict classifier.Verdict) ([]byte, error)
}

// Buffer stores confirmed frames.
type Buffer interface {
	AddImage(image []byte, camera string, detections []dto.DetectionResult) bool
}

// Broadcaster pushes frames and events to viewers.
type Broadcaster interface {
	BroadcastFrame(image []byte, camera string) bool
	BroadcastDetection(event dto.DetectionResult, image []byte) bool
}

// Manager runs the camera frame pipeline. Frames are classified by a single
// worker so only one inference runs at a time.
type Manager struct {
	detector    Detector
	buffer      Buffer
	broadcaster Broadcaster
	logger      *logger.Logger

	processingQueue chan ImageProcessingTask
	frameCounters   map[string]int
	processEveryNth int

	frameCounterMu sync.Mutex
	stopOnce       sync.Once
	wg             sync.WaitGroup
	stopped        chan struct{}
	now            func() time.Time
}

type ImageProcessingTask struct {
	Image  []byte
	Camera string
}

func NewManager(detector Detector, buffer Buffer, broadcaster Broadcaster, config *config.Config, logger *logger.Logger) *Manager {
	manager := &Manager{
		detector:        detector,
		buffer:          buffer,
		broadcaster:     broadcaster,
		processingQueue: make(chan ImageProcessingTask, config.QueueSize),
		frameCounters:   make(map[string]int),
		processEveryNth: config.ProcessingInterval,
		logger:          logger,
		stopped:         make(chan struct{}),
		now:             time.Now,
	}
	if manager.processEveryNth < 1 {
		manager.processEveryNth = 1
	}

	manager.wg.Add(1)
	go manager.processingWorker()

	manager.logger.Info("🎬 Manager started - processing every %d frame(s)", manager.processEveryNth)
	return manager
}

// HandleCameraImage forwards a frame to viewers and queues every Nth frame
// per camera for analysis. It reports whether the frame was queued.
func (m *Manager) HandleCameraImage(image []byte, camera string) bool {
	m.broadcaster.BroadcastFrame(image, camera)

	m.frameCounterMu.Lock()
	m.frameCounters[camera]++
	due := m.frameCounters[camera] >= m.processEveryNth
	if due {
		m.frameCounters[camera] = 0
	}
	m.frameCounterMu.Unlock()

	if !due {
		return false
	}

	select {
	case <-m.stopped:
		return false
	default:
	}

	select {
	case m.processingQueue <- ImageProcessingTask{Image: image, Camera: camera}:
		return true
	default:
		m.logger.Warning("⚠️  Processing queue full for camera %s - skipping frame", camera)
		return false
	}
}

func (m *Manager) processingWorker() {
	defer m.wg.Done()

	m.logger.Info("🔧 Processing worker started")
	for {
		select {
		case task := <-m.processingQueue:
			m.ProcessFrame(task.Image, task.Camera)
		case <-m.stopped:
			m.logger.Info("🔧 Processing worker stopped")
			return
		}
	}
}

// ProcessFrame runs motion detection and bird gating on one frame. A
// confirmed frame is annotated, buffered and broadcast; the event is
// returned, or nil when nothing was detected.
func (m *Manager) ProcessFrame(image []byte, camera string) *dto.DetectionResult {
	frame, err := m.detector.DecodeGrayscale(image)
	if err != nil {
		m.logger.Error("Error decoding frame from %s: %v", camera, err)
		return nil
	}

	motion, err := m.detector.DetectMotion(frame, camera)
	if err != nil {
		m.logger.Error("Error detecting motion: %v", err)
		return nil
	}
	if !motion {
		return nil
	}

	verdict := m.detector.DetectBird(frame)
	if !verdict.Bird {
		m.logger.Info("Camera %s: motion rejected, %.1f%% bird below %.0f%% threshold", camera, verdict.Confidence.Percent(), verdict.Threshold*100)
		return nil
	}

	event := dto.DetectionResult{
		EventID:     uuid.NewString(),
		Camera:      camera,
		Label:       verdict.Label,
		AIAvailable: verdict.Available,
		Timestamp:   m.now().Format(time.RFC3339),
	}
	if verdict.Confidence != nil {
		conf := float32(*verdict.Confidence)
		event.Confidence = &conf
		m.logger.Info("🐦 Camera %s: bird confirmed (%.1f%%)", camera, verdict.Confidence.Percent())
	} else {
		m.logger.Info("🐦 Camera %s: motion accepted without classifier", camera)
	}

	annotated, err := m.detector.Annotate(image, verdict)
	if err != nil {
		m.logger.Error("Failed to annotate frame: %v", err)
		annotated = image
	}

	if !m.buffer.AddImage(annotated, camera, []dto.DetectionResult{event}) {
		m.logger.Warning("Buffer full for camera %s - frame not stored", camera)
	}
	m.broadcaster.BroadcastDetection(event, annotated)
	return &event
}

// Stop ends the worker. Queued frames that were not started are dropped.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopped)
		m.wg.Wait()
		m.logger.Info("🛑 Manager stopped")
	})
}
