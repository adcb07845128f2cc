package sqlite

import (
	"database/sql"
	"fmt"

	"birdgate/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

const insertDetection = `
	INSERT INTO detections (image_id, event_id, label, confidence, ai_available)
	VALUES (?, ?, ?, ?, ?)
`

const selectDetection = `SELECT id, image_id, event_id, label, confidence, ai_available FROM detections`

// Insert adds a new detection record to the database.
func (r *DetectionRepository) Insert(det *model.Detection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertDetection, det.ImageID, det.EventID, det.Label, nullFloat(det.Confidence), det.AIAvailable)
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}
	return result.LastInsertId()
}

// InsertBatch adds multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []model.Detection) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertDetection)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.ImageID, det.EventID, det.Label, nullFloat(det.Confidence), det.AIAvailable); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}
	return tx.Commit()
}

// GetByImageID retrieves all detections for an image.
func (r *DetectionRepository) GetByImageID(imageID int64) ([]model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(selectDetection+` WHERE image_id = ? ORDER BY id`, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []model.Detection
	for rows.Next() {
		det, err := scanDetection(rows)
		if err != nil {
			return nil, err
		}
		detections = append(detections, *det)
	}
	return detections, rows.Err()
}

// GetByEventID returns the detection with the given event id, or nil.
func (r *DetectionRepository) GetByEventID(eventID string) (*model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	det, err := scanDetection(r.db.Conn().QueryRow(selectDetection+` WHERE event_id = ?`, eventID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return det, err
}

// DeleteByImageID removes all detections for a specific image.
func (r *DetectionRepository) DeleteByImageID(imageID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE image_id = ?`, imageID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDetection(row scanner) (*model.Detection, error) {
	var det model.Detection
	var conf sql.NullFloat64
	if err := row.Scan(&det.ID, &det.ImageID, &det.EventID, &det.Label, &conf, &det.AIAvailable); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan detection: %w", err)
	}
	if conf.Valid {
		v := conf.Float64
		det.Confidence = &v
	}
	return &det, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
