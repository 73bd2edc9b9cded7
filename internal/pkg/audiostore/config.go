package audiostore

import (
	"errors"
	"fmt"
	"time"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/env"
)

// Config holds the object store configuration for audio files, stems and
// contract documents.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// Object key prefixes per asset kind.
const (
	KindMaster   = "masters"
	KindPreview  = "previews"
	KindStems    = "stems"
	KindCover    = "covers"
	KindContract = "contracts"
)

// LoadConfig loads the audio store configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-west-001"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("S3_AUDIO_STORE_ENABLED", "false") == "true",
	}

	// Validate required fields if the audio store is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the audio store is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the audio store is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the audio store is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the audio store is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey generates a standardized object key for a beat asset.
// Format: <kind>/YYYY/MM/UUID.ext
func (c *Config) ObjectKey(kind, beatUUID, fileExtension string, t time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%s%s", kind, t.Year(), int(t.Month()), beatUUID, fileExtension)
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}

// GetBucketName returns the bucket name as configured (no automatic prefixing)
func (c *Config) GetBucketName() string {
	return c.BucketName
}
