package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Phill981/PrevexRaspiBackend/internal/model"
	"github.com/Phill981/PrevexRaspiBackend/internal/repository/sqlite"
	"github.com/Phill981/PrevexRaspiBackend/internal/service/storage"
)

// migrate rebuilds the sqlite ledger from the image keys found in the blob directory.
func main() {
	imagesDir := flag.String("images", "uploads", "Directory containing images")
	dbPath := flag.String("db", "data/ledger.db", "Database path")
	flag.Parse()

	fmt.Printf("Migrating images from %s to database %s\n", *imagesDir, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	store, err := storage.NewBlobStore(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to open images directory: %v", err)
	}

	keys, err := store.ListKeys()
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}

	repo := sqlite.NewImageRepository(db)
	images, skipped := collectImages(store, repo, keys)

	if len(images) == 0 {
		fmt.Println("No images found to migrate")
		return
	}

	fmt.Printf("Inserting %d images into database...\n", len(images))
	if err := repo.BulkAppend(images); err != nil {
		log.Fatalf("Failed to insert images: %v", err)
	}

	fmt.Printf("Migrated %d images\n", len(images))
	if skipped > 0 {
		fmt.Printf("Skipped %d files (unrecognized name, already recorded, or unreadable)\n", skipped)
	}

	total, err := repo.Total()
	if err != nil {
		return
	}
	devices, err := repo.Devices()
	if err != nil {
		return
	}
	fmt.Printf("Total images: %d\n", total)
	for _, id := range devices {
		n, err := repo.Count(id)
		if err != nil {
			continue
		}
		fmt.Printf("   - %s: %d images\n", id, n)
	}
}

func collectImages(store *storage.BlobStore, repo *sqlite.ImageRepository, keys []string) ([]model.Image, int) {
	var images []model.Image
	skipped := 0
	for _, key := range keys {
		deviceID, ts, ok := storage.ParseKey(key)
		if !ok {
			log.Printf("Skipping %s: not an image key", key)
			skipped++
			continue
		}

		if known, err := repo.Exists(key); err != nil || known {
			skipped++
			continue
		}

		info, err := os.Stat(store.Path(key))
		if err != nil {
			log.Printf("Failed to get info for %s: %v", key, err)
			skipped++
			continue
		}

		images = append(images, model.Image{
			DeviceID:   deviceID,
			Filename:   key,
			UploadTime: ts,
			FilePath:   store.Path(key),
			FileSize:   info.Size(),
		})
	}
	return images, skipped
}
