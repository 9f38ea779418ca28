package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/whaakman/scene-description-web-example/internal/domain"
	"github.com/whaakman/scene-description-web-example/internal/service"
)

const (
	formField  = "file"
	uploadPath = "/upload"

	// multipart framing on top of the file itself
	formOverhead = 1 << 20
)

type Handler struct {
	service       service.CaptionService
	maxUploadSize int64
	log           *zap.Logger
}

func NewHandler(service service.CaptionService, maxUploadSize int64, log *zap.Logger) *Handler {
	return &Handler{
		service:       service,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

func (h *Handler) describe(c *gin.Context) (*domain.SceneResult, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+formOverhead)

	fh, err := c.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, service.Invalid(service.ErrFileTooLarge)
		}
		// An empty file input is sent as a part with filename="", which the
		// multipart reader files under form values.
		if form := c.Request.MultipartForm; form != nil {
			if _, ok := form.Value[formField]; ok {
				return nil, service.Invalid(service.ErrNoFilename)
			}
		}
		h.log.Info("No file part in the request", zap.Error(err))
		return nil, service.Invalid(service.ErrNoFile)
	}

	if err := h.service.Validate(fh.Filename, fh.Size); err != nil {
		return nil, err
	}

	file, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return h.service.DescribeImage(c.Request.Context(), service.UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        file,
	})
}

// Upload handles the form post and renders the result page. Invalid uploads
// are sent back to the form.
func (h *Handler) Upload(c *gin.Context) {
	result, err := h.describe(c)
	switch {
	case err == nil:
		c.HTML(http.StatusOK, "result.html", gin.H{
			"image_url": result.ImageURL,
			"captions":  result.Captions,
			"results":   result.Results,
		})
	case errors.Is(err, service.ErrInvalidUpload):
		h.log.Info("Rejected upload", zap.Error(err))
		c.Redirect(http.StatusFound, uploadPath)
	default:
		status, msg := h.failure(err)
		c.HTML(status, "error.html", gin.H{"error": msg})
	}
}

func (h *Handler) UploadAsync(c *gin.Context) {
	result, err := h.describe(c)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, service.ErrInvalidUpload):
		h.log.Info("Rejected upload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
	default:
		status, msg := h.failure(err)
		c.JSON(status, gin.H{"error": msg})
	}
}

func (h *Handler) failure(err error) (int, string) {
	if errors.Is(err, service.ErrUpstream) {
		h.log.Error("Upstream service failed", zap.Error(err))
		return http.StatusBadGateway, "Failed to describe the image, please try again later"
	}
	h.log.Error("Failed to process upload", zap.Error(err))
	return http.StatusInternalServerError, "Failed to process file"
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrNoFile):
		return "No file part in the request"
	case errors.Is(err, service.ErrNoFilename):
		return "No file selected"
	case errors.Is(err, service.ErrFileType):
		return "File type not allowed"
	case errors.Is(err, service.ErrFileTooLarge):
		return "File too large"
	default:
		return "Invalid upload"
	}
}

func (h *Handler) Index(c *gin.Context) {
	c.Redirect(http.StatusFound, uploadPath)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *Handler) GetUI(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{})
}
