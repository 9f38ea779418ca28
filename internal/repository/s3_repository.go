package repository

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/whaakman/scene-description-web-example/internal/config"
)

type s3Repository struct {
	client  *s3.Client
	cfg     *config.S3Config
	bucket  string
	baseURL string
	log     *zap.Logger
}

func NewS3Repository(ctx context.Context, cfg *config.S3Config, bucket string, log *zap.Logger) (BlobRepository, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, err
	}

	endpoint := endpointURL(cfg)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	repo := &s3Repository{
		client:  client,
		cfg:     cfg,
		bucket:  bucket,
		baseURL: publicBaseURL(cfg, endpoint, bucket),
		log:     log,
	}

	if err := repo.ensureBucketExists(ctx); err != nil {
		log.Warn("Failed to ensure bucket exists", zap.Error(err))
	}

	return repo, nil
}

func endpointURL(cfg *config.S3Config) string {
	if cfg.Endpoint == "" || strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint
	}
	if cfg.UseSSL {
		return "https://" + cfg.Endpoint
	}
	return "http://" + cfg.Endpoint
}

func publicBaseURL(cfg *config.S3Config, endpoint, bucket string) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	if endpoint == "" {
		return "https://" + bucket + ".s3." + cfg.Region + ".amazonaws.com"
	}
	return strings.TrimRight(endpoint, "/") + "/" + bucket
}

func (r *s3Repository) ensureBucketExists(ctx context.Context) error {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(r.bucket),
	})

	if err == nil {
		r.log.Info("Bucket already exists", zap.String("bucket", r.bucket))
		return nil
	}

	r.log.Info("Creating bucket", zap.String("bucket", r.bucket))

	input := &s3.CreateBucketInput{
		Bucket: aws.String(r.bucket),
	}
	// us-east-1 rejects an explicit location constraint
	if r.cfg.Region != "" && r.cfg.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(r.cfg.Region),
		}
	}

	_, err = r.client.CreateBucket(ctx, input)
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return err
	}

	r.log.Info("Bucket created successfully", zap.String("bucket", r.bucket))

	return nil
}

func (r *s3Repository) UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	// Payload signing over plain HTTP needs a seekable body.
	if _, ok := body.(io.ReadSeeker); !ok {
		data, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})

	if err != nil {
		r.log.Error("Failed to upload file to S3",
			zap.String("key", key),
			zap.Error(err))
		return err
	}

	r.log.Info("File uploaded to S3",
		zap.String("key", key),
		zap.Int64("size", size))

	return nil
}

func (r *s3Repository) ObjectURL(key string) string {
	return r.baseURL + "/" + url.PathEscape(key)
}
