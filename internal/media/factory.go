package media

import (
	"context"
	"fmt"

	"github.com/tylerlaw/portfolio/internal/config"
)

// NewStorageFromConfig creates the Storage selected by the media config driver.
func NewStorageFromConfig(ctx context.Context, cfg config.MediaConfig) (Storage, error) {
	switch cfg.Driver {
	case "local":
		if cfg.Root == "" {
			return nil, fmt.Errorf("local media storage requires a root directory")
		}
		return NewLocalStorage(cfg.Root, cfg.URLPrefix)
	case "s3":
		return NewS3Storage(ctx, S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown media driver: %s", cfg.Driver)
	}
}
