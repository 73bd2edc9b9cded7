package controllers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/beatmarkt/BeatMarkt/app/models"
	"github.com/beatmarkt/BeatMarkt/app/repository"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/jobqueue"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/statistics"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/upload"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/usercontext"
)

const (
	// MastersDir is where uploaded masters land before the backup job moves
	// them to object storage.
	MastersDir = "uploads/masters"
	// CoversDir is where uploaded cover originals land for variant rendering.
	CoversDir = "uploads/covers/original"
	// PreviewsDir is served statically; previews are the free, producer-tagged
	// teaser tracks.
	PreviewsDir = "uploads/previews"

	maxMasterBytes  int64 = 500 << 20
	maxCoverBytes   int64 = 10 << 20
	maxPreviewBytes int64 = 20 << 20
)

// HandleProducerPayouts returns the caller's sales summary. The summary is
// cached for a few minutes, so a sale may take a moment to show up.
// Query: days (default 30, max 365)
func HandleProducerPayouts(c *fiber.Ctx) error {
	producerID := usercontext.GetUserID(c)

	days := c.QueryInt("days", statistics.DefaultRangeDays)
	summary, err := statistics.ProducerSummaryFor(producerID, days)
	if err != nil {
		log.Errorf("[Producer] Payout summary failed for producer %d: %v", producerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not compute payout summary"})
	}

	return c.JSON(summary)
}

// HandleProducerSales lists the caller's sales line by line, newest first.
// HandleProducerPayouts has the aggregated view.
func HandleProducerSales(c *fiber.Ctx) error {
	producerID := usercontext.GetUserID(c)
	_, perPage, offset := parsePagination(c)

	sales, err := repository.GetGlobalFactory().GetPurchaseRepository().ListByProducer(producerID, offset, perPage)
	if err != nil {
		log.Errorf("[Producer] List sales failed for producer %d: %v", producerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load sales"})
	}

	return c.JSON(fiber.Map{"sales": sales})
}

// HandleProducerBeats lists the caller's own listings, sold and archived
// included.
func HandleProducerBeats(c *fiber.Ctx) error {
	producerID := usercontext.GetUserID(c)
	_, perPage, offset := parsePagination(c)

	beats, err := repository.GetGlobalFactory().GetBeatRepository().GetByProducerID(producerID, offset, perPage)
	if err != nil {
		log.Errorf("[Producer] List beats failed for producer %d: %v", producerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load beats"})
	}

	return c.JSON(fiber.Map{"beats": beats})
}

// HandleProducerBeatUpload creates a listing from a multipart form. The
// master is saved locally, the catalog row is created, then cover rendering
// and the object store backup run through the job queue.
// Form fields: title (required), genre, bpm, key_signature, price_cents,
// is_exclusive. Files: audio (required), cover and preview (optional).
func HandleProducerBeatUpload(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid multipart form"})
	}
	defer form.RemoveAll()

	audioFiles := form.File["audio"]
	if len(audioFiles) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Audio master missing"})
	}
	audioFile := audioFiles[0]
	if audioFile.Size > maxMasterBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "too_large", "message": "Audio master exceeds the size limit"})
	}

	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Title is required"})
	}

	if _, err := sniffValidate(audioFile, upload.ValidateAudioBySniff); err != nil {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": "unsupported_media_type", "message": err.Error()})
	}

	var coverFile *multipart.FileHeader
	if covers := form.File["cover"]; len(covers) > 0 {
		coverFile = covers[0]
		if coverFile.Size > maxCoverBytes {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "too_large", "message": "Cover exceeds the size limit"})
		}
		if _, err := sniffValidate(coverFile, upload.ValidateCoverBySniff); err != nil {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": "unsupported_media_type", "message": err.Error()})
		}
	}

	var previewFile *multipart.FileHeader
	if previews := form.File["preview"]; len(previews) > 0 {
		previewFile = previews[0]
		if previewFile.Size > maxPreviewBytes {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "too_large", "message": "Preview exceeds the size limit"})
		}
		if _, err := sniffValidate(previewFile, upload.ValidatePreviewBySniff); err != nil {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{"error": "unsupported_media_type", "message": err.Error()})
		}
	}

	beatUUID := uuid.New().String()
	audioExt := strings.ToLower(filepath.Ext(audioFile.Filename))
	audioPath := filepath.Join(MastersDir, beatUUID+audioExt)
	if err := saveUploadedFile(c, audioFile, audioPath); err != nil {
		log.Errorf("[Producer] Could not save master for %s: %v", beatUUID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not store audio master"})
	}

	previewPath := ""
	if previewFile != nil {
		previewPath = filepath.Join(PreviewsDir, beatUUID+".mp3")
		if err := saveUploadedFile(c, previewFile, previewPath); err != nil {
			log.Warnf("[Producer] Could not save preview for %s: %v", beatUUID, err)
			previewPath = ""
		}
	}

	beat := &models.Beat{
		UUID:         beatUUID,
		ProducerID:   userCtx.UserID,
		Title:        title,
		Genre:        strings.TrimSpace(c.FormValue("genre")),
		BPM:          parseFormInt(c.FormValue("bpm")),
		KeySignature: strings.TrimSpace(c.FormValue("key_signature")),
		PriceCents:   parseFormInt64(c.FormValue("price_cents")),
		IsExclusive:  parseFormBool(c.FormValue("is_exclusive")),
		Status:       models.BeatStatusAvailable,
		AudioPath:    audioPath,
		PreviewPath:  previewPath,
		DurationSecs: parseFormInt(c.FormValue("duration_secs")),
	}
	if err := beat.Validate(); err != nil {
		removeQuietly(audioPath)
		removeQuietly(previewPath)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": fmt.Sprintf("Invalid beat data: %s", err)})
	}

	if err := repository.GetGlobalFactory().GetBeatRepository().Create(beat); err != nil {
		removeQuietly(audioPath)
		removeQuietly(previewPath)
		log.Errorf("[Producer] Could not create beat %s: %v", beatUUID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not create beat"})
	}

	queue := jobqueue.GetManager().GetQueue()
	if _, err := queue.EnqueueAudioBackup(beat.ID, beat.UUID, audioPath, audioFile.Filename, audioFile.Size); err != nil {
		log.Errorf("[Producer] Could not enqueue audio backup for beat %s: %v", beat.UUID, err)
	}

	if coverFile != nil {
		coverExt := strings.ToLower(filepath.Ext(coverFile.Filename))
		coverPath := filepath.Join(CoversDir, beatUUID+coverExt)
		if err := saveUploadedFile(c, coverFile, coverPath); err != nil {
			log.Warnf("[Producer] Could not save cover for beat %s: %v", beat.UUID, err)
		} else if _, err := queue.EnqueueCoverArt(beat.ID, beat.UUID, coverPath, coverFile.Filename); err != nil {
			log.Errorf("[Producer] Could not enqueue cover art for beat %s: %v", beat.UUID, err)
		}
	}

	log.Infof("[Producer] Beat %s created by producer %d (%s)", beat.UUID, userCtx.UserID, title)
	return c.Status(fiber.StatusCreated).JSON(beat)
}

// HandleProducerBeatUpdate edits listing fields. Sold beats are immutable,
// the sale froze their terms. Status may only move between available and
// archived; exclusivity is fixed at upload.
func HandleProducerBeatUpdate(c *fiber.Ctx) error {
	producerID := usercontext.GetUserID(c)

	repo := repository.GetGlobalFactory().GetBeatRepository()
	beat, err := repo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Beat not found"})
		}
		log.Errorf("[Producer] Beat lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not load beat"})
	}
	if beat.ProducerID != producerID {
		// Not the owner. Answer 404 so listings cannot be probed.
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Beat not found"})
	}
	if beat.Status == models.BeatStatusSold {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Sold beats cannot be edited"})
	}

	var req struct {
		Title        *string `json:"title"`
		Genre        *string `json:"genre"`
		BPM          *int    `json:"bpm"`
		KeySignature *string `json:"key_signature"`
		PriceCents   *int64  `json:"price_cents"`
		Status       *string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	if req.Title != nil {
		beat.Title = strings.TrimSpace(*req.Title)
	}
	if req.Genre != nil {
		beat.Genre = strings.TrimSpace(*req.Genre)
	}
	if req.BPM != nil {
		beat.BPM = *req.BPM
	}
	if req.KeySignature != nil {
		beat.KeySignature = strings.TrimSpace(*req.KeySignature)
	}
	if req.PriceCents != nil {
		beat.PriceCents = *req.PriceCents
	}
	if req.Status != nil {
		switch *req.Status {
		case models.BeatStatusAvailable, models.BeatStatusArchived:
			beat.Status = *req.Status
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Status must be available or archived"})
		}
	}

	if err := beat.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": fmt.Sprintf("Invalid beat data: %s", err)})
	}

	if err := repo.Update(beat); err != nil {
		log.Errorf("[Producer] Beat update failed for %s: %v", beat.UUID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not update beat"})
	}

	log.Infof("[Producer] Beat %s updated by producer %d", beat.UUID, producerID)
	return c.JSON(beat)
}

// sniffValidate reads the head of an uploaded file and runs it through the
// given validator.
func sniffValidate(file *multipart.FileHeader, validate func(string, []byte) (string, error)) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	head := make([]byte, 512)
	n, _ := io.ReadFull(src, head)
	_ = src.Close()
	return validate(file.Filename, head[:n])
}

func saveUploadedFile(c *fiber.Ctx, file *multipart.FileHeader, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return c.SaveFile(file, dest)
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warnf("[Producer] Could not remove %s: %v", path, err)
	}
}

func parseFormInt(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return v
}

func parseFormInt64(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseFormBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return v
}
