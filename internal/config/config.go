package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageAzure = "azure"
	StorageS3    = "s3"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	S3      S3Config
	Vision  VisionConfig
	LLM     LLMConfig
	App     AppConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StorageConfig struct {
	Backend          string
	ConnectionString string
	ContainerName    string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
	PublicBaseURL   string
}

type VisionConfig struct {
	Endpoint string
	Key      string
	Timeout  time.Duration
}

type LLMConfig struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Model      string
	Timeout    time.Duration
	PromptPath string
}

type AppConfig struct {
	MaxUploadSize  int64
	AllowedFormats []string
	ShowProgress   bool
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:         v.GetString("SERVER_HOST"),
			Port:         v.GetString("SERVER_PORT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		Storage: StorageConfig{
			Backend:          strings.ToLower(v.GetString("STORAGE_BACKEND")),
			ConnectionString: v.GetString("BLOB_STORAGE_CONNECTION_STRING"),
			ContainerName:    v.GetString("BLOB_CONTAINER_NAME"),
		},
		S3: S3Config{
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			UseSSL:          v.GetBool("S3_USE_SSL"),
			Region:          v.GetString("S3_REGION"),
			PublicBaseURL:   v.GetString("S3_PUBLIC_BASE_URL"),
		},
		Vision: VisionConfig{
			Endpoint: v.GetString("AZURE_COGNITIVESERVICES_ENDPOINT"),
			Key:      v.GetString("AZURE_OPENAI_KEY"),
			Timeout:  v.GetDuration("VISION_TIMEOUT"),
		},
		LLM: LLMConfig{
			Endpoint:   v.GetString("LLM_ENDPOINT"),
			APIKey:     v.GetString("LLM_API_KEY"),
			APIVersion: v.GetString("LLM_API_VERSION"),
			Model:      v.GetString("LLM_MODEL"),
			Timeout:    v.GetDuration("LLM_TIMEOUT"),
			PromptPath: v.GetString("PROMPT_PATH"),
		},
		App: AppConfig{
			MaxUploadSize:  v.GetInt64("APP_MAX_UPLOAD_SIZE"),
			AllowedFormats: normalizeFormats(v.GetStringSlice("APP_ALLOWED_FORMATS")),
			ShowProgress:   v.GetBool("APP_SHOW_PROGRESS"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	// A single Azure AI services key usually covers both vision and the model.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = cfg.Vision.Key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "localhost")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 2*time.Minute)
	v.SetDefault("STORAGE_BACKEND", StorageAzure)
	v.SetDefault("BLOB_CONTAINER_NAME", "uploads")
	v.SetDefault("S3_ENDPOINT", "localhost:9000")
	v.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("VISION_TIMEOUT", 30*time.Second)
	v.SetDefault("LLM_MODEL", "gpt-4o")
	v.SetDefault("LLM_TIMEOUT", 60*time.Second)
	v.SetDefault("PROMPT_PATH", "prompts/imagecaption.prompty")
	v.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	v.SetDefault("APP_ALLOWED_FORMATS", []string{"png", "jpg", "jpeg", "gif"})
	v.SetDefault("APP_SHOW_PROGRESS", false)
	v.SetDefault("LOG_LEVEL", "info")
}

// normalizeFormats lower-cases the allow-list and strips leading dots, so
// both "PNG" and ".png" match a ".png" upload.
func normalizeFormats(formats []string) []string {
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		// viper splits env values on whitespace only
		for _, part := range strings.Split(f, ",") {
			part = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(part)), ".")
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageAzure:
		if c.Storage.ConnectionString == "" {
			return fmt.Errorf("BLOB_STORAGE_CONNECTION_STRING is required for the %s backend", StorageAzure)
		}
	case StorageS3:
		if c.S3.Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required for the %s backend", StorageS3)
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Storage.ContainerName == "" {
		return fmt.Errorf("BLOB_CONTAINER_NAME is required")
	}
	if c.Vision.Endpoint == "" {
		return fmt.Errorf("AZURE_COGNITIVESERVICES_ENDPOINT is required")
	}
	if c.Vision.Key == "" {
		return fmt.Errorf("AZURE_OPENAI_KEY is required")
	}
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("LLM_ENDPOINT is required")
	}
	if c.App.MaxUploadSize <= 0 {
		return fmt.Errorf("APP_MAX_UPLOAD_SIZE must be positive")
	}
	if len(c.App.AllowedFormats) == 0 {
		return fmt.Errorf("APP_ALLOWED_FORMATS must not be empty")
	}
	return nil
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
