package lessonarchive

import (
	"errors"
	"fmt"
	"time"

	"github.com/manana-app/manana/internal/pkg/env"
)

// Config holds the lesson archive storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads archive configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("LESSON_ARCHIVE_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the lesson archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the lesson archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the lesson archive is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if the lesson archive is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey generates the archive key for an exported lesson.
// Format: lessons/YYYY/MM/<lessonID>.pdf
func (c *Config) GetObjectKey(lessonID uint, when time.Time) string {
	return fmt.Sprintf("lessons/%04d/%02d/%d.pdf", when.Year(), int(when.Month()), lessonID)
}
