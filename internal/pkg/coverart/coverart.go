// Package coverart renders the square cover variants shown in the beat
// catalog. Variants are plain JPEGs; the original upload stays untouched.
package coverart

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
)

const (
	// Variant sizes in pixels (square)
	SmallCoverSize  = 200
	MediumCoverSize = 500

	// CoversDir is the base directory for generated cover variants
	CoversDir = "uploads/covers"
)

// Variants holds the file paths of the generated cover sizes.
type Variants struct {
	Small  string
	Medium string
}

// Process generates the small and medium cover variants for a beat. The
// source image is cropped to a centered square first so all covers line up
// in the catalog grid.
func Process(beatUUID, originalPath string) (*Variants, error) {
	img, err := imaging.Open(originalPath)
	if err != nil {
		return nil, fmt.Errorf("error opening original cover: %w", err)
	}

	bounds := img.Bounds()
	log.Infof("[CoverArt] Processing cover for beat %s (%dx%d)", beatUUID, bounds.Dx(), bounds.Dy())

	variants := &Variants{
		Small:  variantPath(beatUUID, "small"),
		Medium: variantPath(beatUUID, "medium"),
	}

	// Quadratisch zuschneiden, dann verkleinern
	small := imaging.Fill(img, SmallCoverSize, SmallCoverSize, imaging.Center, imaging.Lanczos)
	if err := saveJPEG(small, variants.Small); err != nil {
		return nil, fmt.Errorf("error saving small cover: %w", err)
	}

	medium := imaging.Fill(img, MediumCoverSize, MediumCoverSize, imaging.Center, imaging.Lanczos)
	if err := saveJPEG(medium, variants.Medium); err != nil {
		return nil, fmt.Errorf("error saving medium cover: %w", err)
	}

	log.Infof("[CoverArt] Cover variants created for beat %s", beatUUID)
	return variants, nil
}

// Remove deletes the generated variants for a beat. Missing files are fine.
func Remove(beatUUID string) {
	for _, size := range []string{"small", "medium"} {
		path := variantPath(beatUUID, size)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warnf("[CoverArt] Could not remove %s: %v", path, err)
		}
	}
}

func variantPath(beatUUID, size string) string {
	return filepath.Join(CoversDir, size, beatUUID+".jpg")
}

func saveJPEG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return imaging.Save(img, path, imaging.JPEGQuality(85))
}
