package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/whaakman/scene-description-web-example/internal/config"
	"github.com/whaakman/scene-description-web-example/internal/domain"
	"github.com/whaakman/scene-description-web-example/internal/repository"
	"github.com/whaakman/scene-description-web-example/pkg/utils"
)

// Validation errors, all wrapped in ErrInvalidUpload.
var (
	ErrInvalidUpload = errors.New("invalid upload")
	ErrNoFile        = errors.New("no file part in the request")
	ErrNoFilename    = errors.New("no file selected")
	ErrFileType      = errors.New("file type not allowed")
	ErrFileTooLarge  = errors.New("file too large")
)

// ErrUpstream marks failures of the blob store, the vision service or the
// language model.
var ErrUpstream = errors.New("upstream service failed")

type Captioner interface {
	GenerateCaptions(ctx context.Context, imageURL string) ([]string, error)
}

type Describer interface {
	Describe(ctx context.Context, captions []string) (string, error)
}

type ProgressFactory func(total int64, name string) (utils.ProgressFunc, func())

type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type CaptionService interface {
	Validate(filename string, size int64) error
	UploadImage(ctx context.Context, in UploadInput) (*domain.UploadedImage, error)
	DescribeImage(ctx context.Context, in UploadInput) (*domain.SceneResult, error)
}

type captionService struct {
	blobs     repository.BlobRepository
	captioner Captioner
	describer Describer
	cfg       *config.AppConfig
	progress  ProgressFactory
	log       *zap.Logger
}

type Option func(*captionService)

// WithProgress reports upload progress for every stored file.
func WithProgress(f ProgressFactory) Option {
	return func(s *captionService) { s.progress = f }
}

func NewCaptionService(blobs repository.BlobRepository, captioner Captioner, describer Describer, cfg *config.AppConfig, log *zap.Logger, opts ...Option) CaptionService {
	s := &captionService{
		blobs:     blobs,
		captioner: captioner,
		describer: describer,
		cfg:       cfg,
		log:       log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func Invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidUpload, err)
}

func (s *captionService) Validate(filename string, size int64) error {
	if filename == "" {
		return Invalid(ErrNoFilename)
	}
	if !utils.IsAllowedExtension(filename, s.cfg.AllowedFormats) {
		return Invalid(ErrFileType)
	}
	if size > s.cfg.MaxUploadSize {
		return Invalid(ErrFileTooLarge)
	}
	return nil
}

func (s *captionService) UploadImage(ctx context.Context, in UploadInput) (*domain.UploadedImage, error) {
	if err := s.Validate(in.Filename, in.Size); err != nil {
		return nil, err
	}

	key := utils.UniqueName(in.Filename)
	contentType := utils.ContentType(in.Filename, in.ContentType)

	body := in.Body
	if s.progress != nil {
		observer, finish := s.progress(in.Size, in.Filename)
		defer finish()
		body = utils.NewProgressReader(body, observer)
	}

	if err := s.blobs.UploadFile(ctx, key, body, in.Size, contentType); err != nil {
		return nil, fmt.Errorf("%w: blob upload: %w", ErrUpstream, err)
	}

	image := &domain.UploadedImage{
		Key:          key,
		OriginalName: in.Filename,
		URL:          s.blobs.ObjectURL(key),
		Size:         in.Size,
		ContentType:  contentType,
		UploadedAt:   time.Now(),
	}

	s.log.Info("Image uploaded successfully",
		zap.String("key", key),
		zap.String("filename", in.Filename),
		zap.String("url", image.URL),
		zap.Int64("size", image.Size))

	return image, nil
}

// DescribeImage stores the upload, captions it and describes the scene, in
// that order.
func (s *captionService) DescribeImage(ctx context.Context, in UploadInput) (*domain.SceneResult, error) {
	image, err := s.UploadImage(ctx, in)
	if err != nil {
		return nil, err
	}

	captions, err := s.captioner.GenerateCaptions(ctx, image.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: dense captions: %w", ErrUpstream, err)
	}
	if captions == nil {
		captions = []string{}
	}

	description, err := s.describer.Describe(ctx, captions)
	if err != nil {
		return nil, fmt.Errorf("%w: scene description: %w", ErrUpstream, err)
	}

	s.log.Info("Scene described",
		zap.String("key", image.Key),
		zap.Int("captions", len(captions)))

	return &domain.SceneResult{
		ImageURL: image.URL,
		Captions: captions,
		Results:  description,
	}, nil
}
