package repository

import (
	"context"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"go.uber.org/zap"

	"github.com/whaakman/scene-description-web-example/internal/config"
)

type azureRepository struct {
	container *container.Client
	name      string
	log       *zap.Logger
}

// NewAzureRepository stores uploads in an Azure Blob Storage container. The
// container is created on first use if it does not exist.
func NewAzureRepository(ctx context.Context, cfg *config.StorageConfig, log *zap.Logger) (BlobRepository, error) {
	service, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, err
	}

	repo := &azureRepository{
		container: service.ServiceClient().NewContainerClient(cfg.ContainerName),
		name:      cfg.ContainerName,
		log:       log,
	}

	if err := repo.ensureContainerExists(ctx); err != nil {
		log.Warn("Failed to ensure container exists", zap.Error(err))
	}

	return repo, nil
}

func (r *azureRepository) ensureContainerExists(ctx context.Context) error {
	_, err := r.container.Create(ctx, nil)
	if err == nil {
		r.log.Info("Container created successfully", zap.String("container", r.name))
		return nil
	}
	if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		r.log.Info("Container already exists", zap.String("container", r.name))
		return nil
	}
	return err
}

func (r *azureRepository) UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	client := r.container.NewBlockBlobClient(key)

	_, err := client.UploadStream(ctx, body, &blockblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	})
	if err != nil {
		r.log.Error("Failed to upload blob",
			zap.String("container", r.name),
			zap.String("key", key),
			zap.Error(err))
		return err
	}

	r.log.Info("Blob uploaded",
		zap.String("container", r.name),
		zap.String("key", key),
		zap.Int64("size", size))

	return nil
}

// ObjectURL returns https://<account>.blob.core.windows.net/<container>/<key>
// for a default connection string.
func (r *azureRepository) ObjectURL(key string) string {
	return r.container.NewBlobClient(key).URL()
}
