package repository

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/whaakman/scene-description-web-example/internal/config"
)

// BlobRepository stores uploaded files in a cloud object container and knows
// the public URL each stored object resolves to.
type BlobRepository interface {
	UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	ObjectURL(key string) string
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (BlobRepository, error) {
	switch cfg.Storage.Backend {
	case config.StorageAzure:
		return NewAzureRepository(ctx, &cfg.Storage, log)
	case config.StorageS3:
		return NewS3Repository(ctx, &cfg.S3, cfg.Storage.ContainerName, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
