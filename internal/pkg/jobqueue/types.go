package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeContractEmail JobType = "contract_email"
	JobTypeCoverArt      JobType = "cover_art"
	JobTypeAudioBackup   JobType = "audio_backup"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// ContractEmailJobPayload contains the payload for contract email jobs
type ContractEmailJobPayload struct {
	PurchaseID   uint   `json:"purchase_id"`
	PurchaseUUID string `json:"purchase_uuid"`
}

// ToMap converts the payload to a map for storage
func (p ContractEmailJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"purchase_id":   p.PurchaseID,
		"purchase_uuid": p.PurchaseUUID,
	}
}

// ContractEmailJobPayloadFromMap creates a payload from a map
func ContractEmailJobPayloadFromMap(data map[string]interface{}) (*ContractEmailJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ContractEmailJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// CoverArtJobPayload contains the payload for cover art processing jobs
type CoverArtJobPayload struct {
	BeatID   uint   `json:"beat_id"`
	BeatUUID string `json:"beat_uuid"`
	FilePath string `json:"file_path"` // Original cover file path
	FileName string `json:"file_name"`
}

// ToMap converts the payload to a map for storage
func (p CoverArtJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"beat_id":   p.BeatID,
		"beat_uuid": p.BeatUUID,
		"file_path": p.FilePath,
		"file_name": p.FileName,
	}
}

// CoverArtJobPayloadFromMap creates a payload from a map
func CoverArtJobPayloadFromMap(data map[string]interface{}) (*CoverArtJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload CoverArtJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// AudioBackupJobPayload contains the payload for audio S3 backup jobs
type AudioBackupJobPayload struct {
	BeatID   uint   `json:"beat_id"`
	BeatUUID string `json:"beat_uuid"`
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// ToMap converts the payload to a map for storage
func (p AudioBackupJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"beat_id":   p.BeatID,
		"beat_uuid": p.BeatUUID,
		"file_path": p.FilePath,
		"file_name": p.FileName,
		"file_size": p.FileSize,
	}
}

// AudioBackupJobPayloadFromMap creates a payload from a map
func AudioBackupJobPayloadFromMap(data map[string]interface{}) (*AudioBackupJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload AudioBackupJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
