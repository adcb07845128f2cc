package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"birdgate/internal/config"
	"birdgate/internal/model"
	"birdgate/internal/repository/sqlite"
	"birdgate/internal/service/storage"

	"github.com/google/uuid"
)

// migrate indexes detection images already on disk into the database, for
// example after the database file was lost.
func main() {
	cfg := config.Load()
	imagesDir := flag.String("images", cfg.ImageDirectory, "Directory containing images")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	flag.Parse()

	fmt.Printf("Migrating images from %s to database %s\n", *imagesDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	imageRepo := sqlite.NewImageRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	files, err := os.ReadDir(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}

	migrated, skipped := 0, 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		timestamp, camera, labels, err := storage.ParseFilename(file.Name())
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("⚠️  Failed to get info for %s: %v", file.Name(), err)
			skipped++
			continue
		}

		imageID, err := imageRepo.Insert(&model.Image{
			Filename:  file.Name(),
			Camera:    camera,
			Timestamp: timestamp.UTC(),
			FilePath:  filepath.Join(*imagesDir, file.Name()),
			FileSize:  info.Size(),
		})
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		// Confidence is not recoverable from the filename.
		detections := make([]model.Detection, 0, len(labels))
		for _, label := range labels {
			detections = append(detections, model.Detection{
				ImageID: imageID,
				EventID: uuid.NewString(),
				Label:   label,
			})
		}
		if len(detections) > 0 {
			if err := detectionRepo.InsertBatch(detections); err != nil {
				log.Printf("⚠️  Failed to insert detections for %s: %v", file.Name(), err)
			}
		}
		migrated++
	}

	if migrated == 0 {
		fmt.Println("No images found to migrate")
	} else {
		fmt.Printf("✅ Successfully migrated %d images to database\n", migrated)
	}
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (invalid format, duplicates or errors)\n", skipped)
	}

	stats, err := imageRepo.GetStats()
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}
	fmt.Printf("\n📊 Database Statistics:\n")
	fmt.Printf("   Total images: %d\n", stats.TotalImages)
	fmt.Printf("   Total size: %d bytes\n", stats.TotalSizeBytes)
	fmt.Printf("   Per camera:\n")
	for camera, count := range stats.PerCamera {
		fmt.Printf("      - %s: %d images\n", camera, count)
	}
}
