package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdgate/internal/config"
	"birdgate/internal/dto"
	"birdgate/internal/logger"
	"birdgate/internal/model"
	"birdgate/internal/repository/sqlite"
)

func newTestBuffer(t *testing.T, limit int, withDB bool) (*BufferService, *sqlite.DB) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		ImageDirectory:           filepath.Join(dir, "images"),
		ImageBufferLimit:         limit,
		ImageBufferFlushInterval: 1,
	}
	log, err := logger.New(filepath.Join(dir, "logs"), os.Stdout, os.Stderr)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	if !withDB {
		return NewBufferService(cfg, log, nil, nil), nil
	}

	db, err := sqlite.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBufferService(cfg, log, sqlite.NewImageRepository(db), sqlite.NewDetectionRepository(db)), db
}

func confidence(v float32) *float32 { return &v }

func TestFilename(t *testing.T) {
	ts := time.Date(2025, 6, 15, 14, 30, 5, 123_000_000, time.UTC)

	assert.Equal(t, "2025-06-15_14-30-05.123_garden_bird.jpg", Filename(dto.BufferedImage{
		Timestamp:  ts,
		Camera:     "garden",
		Detections: []dto.DetectionResult{{Label: "bird"}},
	}))
	assert.Equal(t, "2025-06-15_14-30-05.123_192.168.1.20-9999.jpg", Filename(dto.BufferedImage{
		Timestamp: ts,
		Camera:    "192.168.1.20:9999",
	}))
}

func TestAddImage_RespectsPerCameraLimit(t *testing.T) {
	buf, _ := newTestBuffer(t, 2, false)

	assert.True(t, buf.AddImage([]byte{1}, "garden", nil))
	assert.True(t, buf.AddImage([]byte{2}, "garden", nil))
	assert.False(t, buf.AddImage([]byte{3}, "garden", nil))
	assert.True(t, buf.AddImage([]byte{4}, "feeder", nil))
	assert.Equal(t, 3, buf.Pending())

	assert.Equal(t, 3, buf.FlushImages())
	assert.Zero(t, buf.Pending())
	assert.True(t, buf.AddImage([]byte{5}, "garden", nil), "limit resets after flush")
}

func TestFlushImages_WritesFilesAndRows(t *testing.T) {
	buf, db := newTestBuffer(t, 10, true)
	ts := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	buf.now = func() time.Time { return ts }

	buf.AddImage([]byte("jpeg-bytes"), "garden", []dto.DetectionResult{{
		EventID:     "event-1",
		Camera:      "garden",
		Label:       "bird",
		Confidence:  confidence(0.875),
		AIAvailable: true,
	}})
	buf.AddImage([]byte("motion"), "feeder", []dto.DetectionResult{{
		EventID: "event-2",
		Camera:  "feeder",
		Label:   "bird",
	}})

	require.Equal(t, 2, buf.FlushImages())
	assert.Zero(t, buf.FlushImages(), "empty buffer is a no-op")

	data, err := os.ReadFile(filepath.Join(buf.imagesDir, "2025-06-15_14-30-00.000_garden_bird.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	images := sqlite.NewImageRepository(db)
	all, err := images.GetAll(&model.ImageFilter{Camera: "garden"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.EqualValues(t, len("jpeg-bytes"), all[0].FileSize)

	detections := sqlite.NewDetectionRepository(db)
	det, err := detections.GetByEventID("event-1")
	require.NoError(t, err)
	require.NotNil(t, det)
	require.NotNil(t, det.Confidence)
	assert.InDelta(t, 0.875, *det.Confidence, 1e-6)
	assert.True(t, det.AIAvailable)

	det, err = detections.GetByEventID("event-2")
	require.NoError(t, err)
	require.NotNil(t, det)
	assert.Nil(t, det.Confidence)
	assert.False(t, det.AIAvailable)
}

func TestRun_FlushesOnStop(t *testing.T) {
	buf, _ := newTestBuffer(t, 10, false)
	buf.interval = time.Hour

	done := make(chan struct{})
	go func() {
		buf.Run()
		close(done)
	}()

	buf.AddImage([]byte{1}, "garden", []dto.DetectionResult{{Label: "bird"}})
	buf.Stop()
	buf.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.Zero(t, buf.Pending())

	entries, err := os.ReadDir(buf.imagesDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestParseFilename(t *testing.T) {
	ts := time.Date(2025, 6, 15, 14, 30, 5, 123_000_000, time.Local)
	name := Filename(dto.BufferedImage{
		Timestamp:  ts,
		Camera:     "unknown_10.0.0.5",
		Detections: []dto.DetectionResult{{Label: "bird"}},
	})
	assert.Equal(t, "2025-06-15_14-30-05.123_unknown-10.0.0.5_bird.jpg", name)

	parsed, camera, labels, err := ParseFilename(name)
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))
	assert.Equal(t, "unknown-10.0.0.5", camera)
	assert.Equal(t, []string{"bird"}, labels)

	_, camera, labels, err = ParseFilename("2025-06-15_14-30-05.123_garden.jpg")
	require.NoError(t, err)
	assert.Equal(t, "garden", camera)
	assert.Empty(t, labels)

	for _, bad := range []string{"garden.jpg", "2025-06-15_garden.png", "x_y_z.jpg"} {
		_, _, _, err := ParseFilename(bad)
		assert.Error(t, err, bad)
	}
}
