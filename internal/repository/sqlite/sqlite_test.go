package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdgate/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertImage(t *testing.T, repo *ImageRepository, name, camera string, ts time.Time) int64 {
	t.Helper()
	id, err := repo.Insert(&model.Image{
		Filename:  name,
		Camera:    camera,
		Timestamp: ts,
		FilePath:  "/images/" + name,
		FileSize:  100,
	})
	require.NoError(t, err)
	return id
}

func ptr(v float64) *float64 { return &v }

func TestNew_CreatesFileAndMigrates(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "birdgate.db")

	db, err := New(dbPath)
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)

	version, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
	require.NoError(t, db.Close())

	// Reopening must not re-run applied migrations.
	db, err = New(dbPath)
	require.NoError(t, err)
	defer db.Close()
	version, err = db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestImageRepository_InsertAndGet(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))
	ts := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	id := insertImage(t, repo, "a.jpg", "garden", ts)

	img, err := repo.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "a.jpg", img.Filename)
	assert.Equal(t, "garden", img.Camera)
	assert.True(t, ts.Equal(img.Timestamp))
	assert.EqualValues(t, 100, img.FileSize)

	missing, err := repo.GetByID(id + 100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestImageRepository_DuplicateFilename(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))
	insertImage(t, repo, "dup.jpg", "garden", time.Now().UTC())

	_, err := repo.Insert(&model.Image{Filename: "dup.jpg", Camera: "garden", Timestamp: time.Now().UTC()})
	assert.Error(t, err)
}

func TestImageRepository_GetAllFilters(t *testing.T) {
	db := newTestDB(t)
	images := NewImageRepository(db)
	detections := NewDetectionRepository(db)

	base := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	first := insertImage(t, images, "1.jpg", "garden", base)
	second := insertImage(t, images, "2.jpg", "feeder", base.Add(time.Hour))
	insertImage(t, images, "3.jpg", "garden", base.Add(2*time.Hour))

	require.NoError(t, detections.InsertBatch([]model.Detection{
		{ImageID: first, EventID: "e1", Label: "bird", Confidence: ptr(0.9), AIAvailable: true},
		{ImageID: second, EventID: "e2", Label: "motion"},
	}))

	all, err := images.GetAll(nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3.jpg", all[0].Filename, "newest first")

	tests := []struct {
		name   string
		filter model.ImageFilter
		want   []string
	}{
		{"camera", model.ImageFilter{Camera: "garden"}, []string{"3.jpg", "1.jpg"}},
		{"label", model.ImageFilter{Label: "bird"}, []string{"1.jpg"}},
		{"start date", model.ImageFilter{StartDate: base.Add(30 * time.Minute)}, []string{"3.jpg", "2.jpg"}},
		{"end date", model.ImageFilter{EndDate: base.Add(30 * time.Minute)}, []string{"1.jpg"}},
		{"limit", model.ImageFilter{Limit: 1}, []string{"3.jpg"}},
		{"offset", model.ImageFilter{Limit: 1, Offset: 1}, []string{"2.jpg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := tt.filter
			got, err := images.GetAll(&filter)
			require.NoError(t, err)
			var names []string
			for _, img := range got {
				names = append(names, img.Filename)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	count, err := images.GetTotalCount(&model.ImageFilter{Camera: "garden", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestImageRepository_StatsAndDelete(t *testing.T) {
	db := newTestDB(t)
	images := NewImageRepository(db)
	detections := NewDetectionRepository(db)

	now := time.Now().UTC()
	first := insertImage(t, images, "1.jpg", "garden", now)
	second := insertImage(t, images, "2.jpg", "feeder", now)

	_, err := detections.Insert(&model.Detection{ImageID: first, EventID: "e1", Label: "bird", Confidence: ptr(0.8), AIAvailable: true})
	require.NoError(t, err)
	_, err = detections.Insert(&model.Detection{ImageID: second, EventID: "e2", Label: "bird"})
	require.NoError(t, err)

	stats, err := images.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalImages)
	assert.EqualValues(t, 200, stats.TotalSizeBytes)
	assert.Equal(t, map[string]int{"garden": 1, "feeder": 1}, stats.PerCamera)
	assert.Equal(t, 1, stats.Classified)
	assert.Equal(t, 1, stats.MotionOnly)

	require.NoError(t, images.Delete(first))
	dets, err := detections.GetByImageID(first)
	require.NoError(t, err)
	assert.Empty(t, dets)

	require.NoError(t, images.DeleteAll())
	count, err := images.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	det, err := detections.GetByEventID("e2")
	require.NoError(t, err)
	assert.Nil(t, det)
}

func TestDetectionRepository_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	images := NewImageRepository(db)
	detections := NewDetectionRepository(db)

	imageID := insertImage(t, images, "1.jpg", "garden", time.Now().UTC())

	require.NoError(t, detections.InsertBatch([]model.Detection{
		{ImageID: imageID, EventID: "with-confidence", Label: "bird", Confidence: ptr(0.75), AIAvailable: true},
		{ImageID: imageID, EventID: "motion-only", Label: "bird"},
	}))

	got, err := detections.GetByImageID(imageID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].Confidence)
	assert.InDelta(t, 0.75, *got[0].Confidence, 1e-9)
	assert.True(t, got[0].AIAvailable)
	assert.Nil(t, got[1].Confidence)
	assert.False(t, got[1].AIAvailable)

	byEvent, err := detections.GetByEventID("motion-only")
	require.NoError(t, err)
	require.NotNil(t, byEvent)
	assert.Equal(t, imageID, byEvent.ImageID)

	_, err = detections.Insert(&model.Detection{ImageID: imageID, EventID: "motion-only", Label: "bird"})
	assert.Error(t, err, "event ids are unique")

	require.NoError(t, detections.DeleteByImageID(imageID))
	got, err = detections.GetByImageID(imageID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDetectionRepository_BatchRollsBack(t *testing.T) {
	db := newTestDB(t)
	images := NewImageRepository(db)
	detections := NewDetectionRepository(db)
	imageID := insertImage(t, images, "1.jpg", "garden", time.Now().UTC())

	err := detections.InsertBatch([]model.Detection{
		{ImageID: imageID, EventID: "same", Label: "bird"},
		{ImageID: imageID, EventID: "same", Label: "bird"},
	})
	require.Error(t, err)

	got, err := detections.GetByImageID(imageID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
