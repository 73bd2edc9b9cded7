package jobqueue

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/audiostore"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/coverart"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/database"
)

// EnqueueCoverArt schedules cover variant generation for a beat.
func (q *Queue) EnqueueCoverArt(beatID uint, beatUUID, filePath, fileName string) (*Job, error) {
	payload := CoverArtJobPayload{
		BeatID:   beatID,
		BeatUUID: beatUUID,
		FilePath: filePath,
		FileName: fileName,
	}
	return q.EnqueueJob(JobTypeCoverArt, payload.ToMap())
}

// processCoverArtJob renders the catalog cover variants and stores the
// medium variant path on the beat.
func (q *Queue) processCoverArtJob(ctx context.Context, job *Job) error {
	_ = ctx

	payload, err := CoverArtJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid cover art payload: %w", err)
	}
	if payload.BeatID == 0 || payload.FilePath == "" {
		return fmt.Errorf("cover art payload missing beat id or file path")
	}

	variants, err := coverart.Process(payload.BeatUUID, payload.FilePath)
	if err != nil {
		return err
	}

	db := database.GetDB()
	var beat models.Beat
	if err := db.First(&beat, payload.BeatID).Error; err != nil {
		return fmt.Errorf("beat %d not found for cover art: %w", payload.BeatID, err)
	}
	if err := db.Model(&models.Beat{}).
		Where("id = ?", payload.BeatID).
		Update("cover_path", variants.Medium).Error; err != nil {
		return fmt.Errorf("failed to store cover path for beat %d: %w", payload.BeatID, err)
	}

	backupCoverOriginal(payload.BeatUUID, payload.FilePath, payload.FileName, beat.CreatedAt)

	log.Infof("[JobQueue] Cover variants ready for beat %s", payload.BeatUUID)
	return nil
}

// backupCoverOriginal copies the uploaded cover to the object store so the
// variants can be re-rendered after a host loss. Best effort; rendering
// already succeeded.
func backupCoverOriginal(beatUUID, filePath, fileName string, createdAt time.Time) {
	client, err := audiostore.GetClient()
	if err != nil {
		return
	}
	cfg, err := audiostore.LoadConfig()
	if err != nil {
		return
	}
	key := cfg.ObjectKey(audiostore.KindCover, beatUUID, filepath.Ext(fileName), createdAt)
	exists, err := client.ObjectExists(key)
	if err != nil || exists {
		return
	}
	if _, err := client.UploadFile(filePath, key); err != nil {
		log.Warnf("[JobQueue] Cover backup for beat %s failed: %v", beatUUID, err)
	}
}
