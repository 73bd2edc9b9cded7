package jobqueue

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2/log"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/audiostore"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/database"
)

// EnqueueAudioBackup schedules an upload of a beat master to the audio store.
func (q *Queue) EnqueueAudioBackup(beatID uint, beatUUID, filePath, fileName string, fileSize int64) (*Job, error) {
	payload := AudioBackupJobPayload{
		BeatID:   beatID,
		BeatUUID: beatUUID,
		FilePath: filePath,
		FileName: fileName,
		FileSize: fileSize,
	}
	return q.EnqueueJob(JobTypeAudioBackup, payload.ToMap())
}

// processAudioBackupJob uploads the beat master to object storage and
// rewrites the beat's audio path to the object key. Uploads are idempotent;
// an object that already exists is not uploaded again.
func (q *Queue) processAudioBackupJob(ctx context.Context, job *Job) error {
	_ = ctx

	payload, err := AudioBackupJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid audio backup payload: %w", err)
	}
	if payload.BeatID == 0 || payload.FilePath == "" {
		return fmt.Errorf("audio backup payload missing beat id or file path")
	}

	client, err := audiostore.GetClient()
	if err != nil {
		return fmt.Errorf("audio store unavailable: %w", err)
	}

	db := database.GetDB()
	var beat models.Beat
	if err := db.First(&beat, payload.BeatID).Error; err != nil {
		return fmt.Errorf("beat %d not found for audio backup: %w", payload.BeatID, err)
	}

	cfg, err := audiostore.LoadConfig()
	if err != nil {
		return err
	}
	// Key off the beat's creation time so retries hit the same object.
	objectKey := cfg.ObjectKey(audiostore.KindMaster, payload.BeatUUID, filepath.Ext(payload.FileName), beat.CreatedAt)

	exists, err := client.ObjectExists(objectKey)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := client.UploadFile(payload.FilePath, objectKey); err != nil {
			return err
		}
	} else {
		log.Infof("[JobQueue] Audio object %s already present, skipping upload", objectKey)
	}

	if err := db.Model(&models.Beat{}).
		Where("id = ?", payload.BeatID).
		Update("audio_path", objectKey).Error; err != nil {
		return fmt.Errorf("failed to store audio object key for beat %d: %w", payload.BeatID, err)
	}

	// The preview stays local for the storefront player; the object store
	// copy is durability only, so a failure does not fail the job.
	if beat.PreviewPath != "" {
		previewKey := cfg.ObjectKey(audiostore.KindPreview, payload.BeatUUID, filepath.Ext(beat.PreviewPath), beat.CreatedAt)
		if exists, err := client.ObjectExists(previewKey); err == nil && !exists {
			if _, err := client.UploadFile(beat.PreviewPath, previewKey); err != nil {
				log.Warnf("[JobQueue] Preview backup for beat %s failed: %v", payload.BeatUUID, err)
			}
		}
	}

	log.Infof("[JobQueue] Audio master for beat %s stored at %s", payload.BeatUUID, objectKey)
	return nil
}
