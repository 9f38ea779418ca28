package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/whaakman/scene-description-web-example/internal/domain"
)

const (
	analyzePath = "computervision/imageanalysis:analyze"
	apiVersion  = "2023-10-01"

	maxResponseSize = 1 << 20
)

type Client struct {
	httpClient *http.Client
	endpoint   string
	key        string
	log        *zap.Logger
}

// The endpoint is the resource base URL, e.g.
// https://myvision.cognitiveservices.azure.com/.
func NewClient(httpClient *http.Client, endpoint, key string, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(endpoint, "/") + "/",
		key:        key,
		log:        log,
	}
}

func (c *Client) analyzeURL() string {
	q := url.Values{}
	q.Set("features", "denseCaptions")
	q.Set("gender-neutral-caption", "false")
	q.Set("api-version", apiVersion)
	return c.endpoint + analyzePath + "?" + q.Encode()
}

// GenerateCaptions returns the dense caption texts for the image at imageURL
// in the order the service reported them. A response that cannot be mapped
// onto a dense caption result yields an empty list and no error; only
// transport failures are returned.
func (c *Client) GenerateCaptions(ctx context.Context, imageURL string) ([]string, error) {
	body, err := json.Marshal(domain.AnalyzeRequest{URI: imageURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.analyzeURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyze request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read analyze response: %w", err)
	}

	result, err := DecodeAnalyzeResult(data)
	if err != nil {
		c.log.Warn("Dense caption response could not be mapped, continuing without captions",
			zap.String("image_url", imageURL),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(data, 512)),
			zap.Error(err))
		return []string{}, nil
	}

	captions := result.Captions()
	c.log.Info("Dense captions generated",
		zap.String("image_url", imageURL),
		zap.String("model_version", result.ModelVersion),
		zap.Int("width", result.Metadata.Width),
		zap.Int("height", result.Metadata.Height),
		zap.Int("captions", len(captions)))

	return captions, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
