package repository

import "birdgate/internal/model"

// ImageRepository defines the interface for image data operations.
type ImageRepository interface {
	Insert(img *model.Image) (int64, error)

	GetByID(id int64) (*model.Image, error)
	GetAll(filter *model.ImageFilter) ([]model.Image, error)
	GetTotalCount(filter *model.ImageFilter) (int, error)
	GetStats() (*model.ImageStats, error)

	Delete(id int64) error
	DeleteAll() error
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	Insert(det *model.Detection) (int64, error)
	InsertBatch(detections []model.Detection) error

	GetByImageID(imageID int64) ([]model.Detection, error)
	GetByEventID(eventID string) (*model.Detection, error)

	DeleteByImageID(imageID int64) error
}
