package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"birdgate/internal/config"
	"birdgate/internal/dto"
	"birdgate/internal/logger"
	"birdgate/internal/model"
	"birdgate/internal/repository"
)

const timestampLayout = "2006-01-02_15-04-05.000"

// BufferService buffers detection frames in memory and periodically flushes them to disk.
type BufferService struct {
	imagesDir     string
	limit         int
	interval      time.Duration
	images        []dto.BufferedImage
	bufferCount   map[string]int
	mu            sync.Mutex
	logger        *logger.Logger
	imageRepo     repository.ImageRepository
	detectionRepo repository.DetectionRepository
	stop          chan struct{}
	stopOnce      sync.Once
	now           func() time.Time
}

// NewBufferService creates a new BufferService. Repositories may be nil, in
// which case frames are only written to disk.
func NewBufferService(config *config.Config, logger *logger.Logger, imageRepo repository.ImageRepository, detectionRepo repository.DetectionRepository) *BufferService {
	return &BufferService{
		imagesDir:     config.ImageDirectory,
		limit:         config.ImageBufferLimit,
		interval:      time.Duration(config.ImageBufferFlushInterval) * time.Second,
		images:        make([]dto.BufferedImage, 0),
		bufferCount:   make(map[string]int),
		logger:        logger,
		imageRepo:     imageRepo,
		detectionRepo: detectionRepo,
		stop:          make(chan struct{}),
		now:           time.Now,
	}
}

// Run flushes buffered images on every tick until Stop is called, then
// flushes once more.
func (s *BufferService) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.FlushImages()
		case <-s.stop:
			s.FlushImages()
			return
		}
	}
}

// Stop ends Run.
func (s *BufferService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// AddImage appends a frame to the buffer. It reports false when the
// camera already reached its limit for this flush period.
func (s *BufferService) AddImage(imageData []byte, camera string, detections []dto.DetectionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && s.bufferCount[camera] >= s.limit {
		return false
	}

	s.images = append(s.images, dto.BufferedImage{
		Timestamp:  s.now(),
		Camera:     camera,
		Detections: detections,
		Data:       imageData,
	})
	s.bufferCount[camera]++
	s.logger.Info("Buffer size for camera %s: %d/%d", camera, s.bufferCount[camera], s.limit)
	return true
}

// Pending returns the number of buffered frames.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

// FlushImages writes buffered frames to disk, records them in the
// repositories and resets the buffer. It returns the number of saved frames.
func (s *BufferService) FlushImages() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.images) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for _, image := range s.images {
		filename := Filename(image)
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := os.WriteFile(fullpath, image.Data, 0644); err != nil {
			s.logger.Error("Error saving image %s: %v", filename, err)
			continue
		}

		if s.imageRepo != nil {
			if err := s.record(image, filename, fullpath); err != nil {
				s.logger.Error("Error saving image to database %s: %v", filename, err)
				continue
			}
		}

		savedCount++
	}

	s.logger.Info("Flushed %d images to disk", savedCount)
	s.images = s.images[:0]
	s.bufferCount = make(map[string]int)
	return savedCount
}

func (s *BufferService) record(image dto.BufferedImage, filename, fullpath string) error {
	imageID, err := s.imageRepo.Insert(&model.Image{
		Filename:  filename,
		Camera:    image.Camera,
		Timestamp: image.Timestamp.UTC(),
		FilePath:  fullpath,
		FileSize:  int64(len(image.Data)),
	})
	if err != nil {
		return err
	}

	if s.detectionRepo == nil || len(image.Detections) == 0 {
		return nil
	}

	dbDetections := make([]model.Detection, 0, len(image.Detections))
	for _, det := range image.Detections {
		var conf *float64
		if det.Confidence != nil {
			v := float64(*det.Confidence)
			conf = &v
		}
		dbDetections = append(dbDetections, model.Detection{
			ImageID:     imageID,
			EventID:     det.EventID,
			Label:       det.Label,
			Confidence:  conf,
			AIAvailable: det.AIAvailable,
		})
	}
	if err := s.detectionRepo.InsertBatch(dbDetections); err != nil {
		return fmt.Errorf("detections: %w", err)
	}
	return nil
}

// Filename builds "<timestamp>_<camera>_<labels>.jpg" for a buffered frame.
func Filename(image dto.BufferedImage) string {
	labels := make([]string, 0, len(image.Detections))
	for _, det := range image.Detections {
		labels = append(labels, det.Label)
	}
	name := image.Timestamp.Format(timestampLayout) + "_" + sanitize(image.Camera)
	if len(labels) > 0 {
		name += "_" + strings.Join(labels, "_")
	}
	return name + ".jpg"
}

// ParseFilename reverses Filename. The camera is returned as written in
// the filename.
func ParseFilename(filename string) (timestamp time.Time, camera string, labels []string, err error) {
	name := strings.TrimSuffix(filename, ".jpg")
	parts := strings.Split(name, "_")
	if len(parts) < 3 || name == filename {
		return time.Time{}, "", nil, fmt.Errorf("invalid filename format: %s", filename)
	}

	timestamp, err = time.ParseInLocation(timestampLayout, parts[0]+"_"+parts[1], time.Local)
	if err != nil {
		return time.Time{}, "", nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	camera = parts[2]
	for _, label := range parts[3:] {
		if label != "" {
			labels = append(labels, label)
		}
	}
	return timestamp, camera, labels, nil
}

func sanitize(camera string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ', '_', 0:
			return '-'
		}
		return r
	}, camera)
}
