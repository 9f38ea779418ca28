package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/whaakman/scene-description-web-example/internal/config"
	"github.com/whaakman/scene-description-web-example/internal/handler"
	"github.com/whaakman/scene-description-web-example/internal/infrastructure/prompty"
	"github.com/whaakman/scene-description-web-example/internal/infrastructure/vision"
	"github.com/whaakman/scene-description-web-example/internal/repository"
	"github.com/whaakman/scene-description-web-example/internal/service"
	"github.com/whaakman/scene-description-web-example/pkg/utils"
	"github.com/whaakman/scene-description-web-example/web"
)

type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	log        *zap.Logger
}

// New wires the blob repository, the vision client and the prompt assistant
// into the HTTP handlers. All clients are created once and shared by every
// request.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	blobs, err := repository.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob repository: %w", err)
	}

	captioner := vision.NewClient(
		&http.Client{Timeout: cfg.Vision.Timeout},
		cfg.Vision.Endpoint,
		cfg.Vision.Key,
		log,
	)

	prompt, err := prompty.Load(cfg.LLM.PromptPath)
	if err != nil {
		return nil, err
	}
	completer := prompty.NewTracingCompleter(prompty.NewOpenAICompleter(prompty.ClientOptions{
		Endpoint:   cfg.LLM.Endpoint,
		APIKey:     cfg.LLM.APIKey,
		APIVersion: cfg.LLM.APIVersion,
		HTTPClient: &http.Client{Timeout: cfg.LLM.Timeout},
	}), log)
	describer := prompty.NewAssistant(prompt, completer, cfg.LLM.Model)

	var opts []service.Option
	if cfg.App.ShowProgress {
		opts = append(opts, service.WithProgress(utils.ConsoleProgress))
	}
	captionService := service.NewCaptionService(blobs, captioner, describer, &cfg.App, log, opts...)

	h := handler.NewHandler(captionService, cfg.App.MaxUploadSize, log)

	router, err := NewRouter(h, log)
	if err != nil {
		return nil, err
	}

	server := &Server{
		httpServer: &http.Server{
			Addr:           cfg.Addr(),
			Handler:        router,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		cfg: cfg,
		log: log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("prompt", prompt.Name))

	return server, nil
}

func NewRouter(h *handler.Handler, log *zap.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	router.GET("/", h.GetUI)
	router.POST("/", h.Index)
	router.GET("/upload", h.GetUI)
	router.POST("/upload", h.Upload)
	router.POST("/upload_async", h.UploadAsync)
	router.GET("/health", h.HealthCheck)

	return router, nil
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int("size", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("host", s.cfg.Server.Host),
		zap.String("port", s.cfg.Server.Port),
		zap.String("address", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
