package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/whaakman/scene-description-web-example/internal/config"
	"github.com/whaakman/scene-description-web-example/internal/domain"
	"github.com/whaakman/scene-description-web-example/internal/handler"
	"github.com/whaakman/scene-description-web-example/internal/infrastructure/prompty"
	"github.com/whaakman/scene-description-web-example/internal/infrastructure/vision"
	"github.com/whaakman/scene-description-web-example/internal/service"
)

type memoryBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryBlobs) UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryBlobs) ObjectURL(key string) string {
	return "https://acct.blob.core.windows.net/uploads/" + key
}

const visionResponse = `{
  "modelVersion": "2023-10-01",
  "metadata": {"width": 128, "height": 128},
  "denseCaptionsResult": {"values": [
    {"text": "a dog sitting on a lawn", "confidence": 0.8, "boundingBox": {"x": 0, "y": 0, "w": 128, "h": 128}},
    {"text": "a red ball", "confidence": 0.7, "boundingBox": {"x": 10, "y": 80, "w": 20, "h": 20}}
  ]}
}`

const chatResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "A dog waits on the lawn next to a red ball."}}]
}`

type upstreams struct {
	vision    *httptest.Server
	llm       *httptest.Server
	visionURI string
	prompt    string
	llmStatus int
}

func newUpstreams(t *testing.T) *upstreams {
	u := &upstreams{llmStatus: http.StatusOK}

	u.vision = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req domain.AnalyzeRequest
		json.NewDecoder(r.Body).Decode(&req)
		u.visionURI = req.URI
		io.WriteString(w, visionResponse)
	}))
	t.Cleanup(u.vision.Close)

	u.llm = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		u.prompt = string(data)
		w.Header().Set("Content-Type", "application/json")
		if u.llmStatus != http.StatusOK {
			w.WriteHeader(u.llmStatus)
			io.WriteString(w, `{"error": {"message": "unavailable"}}`)
			return
		}
		io.WriteString(w, chatResponse)
	}))
	t.Cleanup(u.llm.Close)

	return u
}

func newTestRouter(t *testing.T, u *upstreams, blobs *memoryBlobs) http.Handler {
	t.Helper()
	log := zap.NewNop()

	prompt, err := prompty.Load("../../prompts/imagecaption.prompty")
	if err != nil {
		t.Fatal(err)
	}
	completer := prompty.NewTracingCompleter(prompty.NewOpenAICompleter(prompty.ClientOptions{
		Endpoint:   u.llm.URL + "/",
		APIKey:     "llm-key",
		HTTPClient: u.llm.Client(),
	}), log)

	appCfg := &config.AppConfig{
		MaxUploadSize:  10 * 1024 * 1024,
		AllowedFormats: []string{"png", "jpg", "jpeg", "gif"},
	}
	svc := service.NewCaptionService(
		blobs,
		vision.NewClient(u.vision.Client(), u.vision.URL, "vision-key", log),
		prompty.NewAssistant(prompt, completer, "gpt-4o"),
		appCfg,
		log,
	)

	router, err := NewRouter(handler.NewHandler(svc, appCfg.MaxUploadSize, log), log)
	if err != nil {
		t.Fatal(err)
	}
	return router
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for x := 0; x < 128; x++ {
		for y := 0; y < 128; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 2), uint8(y * 2), uint8(x ^ y), 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadAsyncEndToEnd(t *testing.T) {
	u := newUpstreams(t)
	blobs := &memoryBlobs{objects: map[string][]byte{}}
	router := newTestRouter(t, u, blobs)
	img := testJPEG(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/upload_async", "dog.jpg", img))

	if expected, actual := http.StatusOK, rec.Code; expected != actual {
		t.Fatalf("Expected status %d, got %d: %s", expected, actual, rec.Body.String())
	}

	var got domain.SceneResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}

	if expected, actual := 1, len(blobs.objects); expected != actual {
		t.Fatalf("Expected %d stored blob, got %d", expected, actual)
	}
	for key, data := range blobs.objects {
		if expected, actual := blobs.ObjectURL(key), got.ImageURL; expected != actual {
			t.Errorf("Expected image URL %q, got %q", expected, actual)
		}
		if !bytes.Equal(img, data) {
			t.Error("Stored blob differs from the upload")
		}
	}
	if expected, actual := got.ImageURL, u.visionURI; expected != actual {
		t.Errorf("Expected vision to analyze %q, got %q", expected, actual)
	}
	if expected, actual := []string{"a dog sitting on a lawn", "a red ball"}, got.Captions; !reflect.DeepEqual(expected, actual) {
		t.Errorf("Expected captions %v, got %v", expected, actual)
	}
	if expected, actual := "A dog waits on the lawn next to a red ball.", got.Results; expected != actual {
		t.Errorf("Expected description %q, got %q", expected, actual)
	}

	first := strings.Index(u.prompt, "a dog sitting on a lawn")
	second := strings.Index(u.prompt, "a red ball")
	if first < 0 || second < 0 || first > second {
		t.Errorf("Expected both captions in order in the prompt, got %s", u.prompt)
	}
}

func TestUploadAsyncRejectsPDF(t *testing.T) {
	u := newUpstreams(t)
	blobs := &memoryBlobs{objects: map[string][]byte{}}
	router := newTestRouter(t, u, blobs)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/upload_async", "document.pdf", []byte("%PDF-1.7")))

	if expected, actual := http.StatusBadRequest, rec.Code; expected != actual {
		t.Fatalf("Expected status %d, got %d", expected, actual)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] == "" {
		t.Error("Expected an error field")
	}
	if len(blobs.objects) != 0 {
		t.Error("Expected no blob upload")
	}
	if u.visionURI != "" || u.prompt != "" {
		t.Error("Expected no upstream calls")
	}
}

func TestUploadAsyncLanguageModelFailure(t *testing.T) {
	u := newUpstreams(t)
	u.llmStatus = http.StatusServiceUnavailable
	router := newTestRouter(t, u, &memoryBlobs{objects: map[string][]byte{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/upload_async", "dog.jpg", testJPEG(t)))

	if expected, actual := http.StatusBadGateway, rec.Code; expected != actual {
		t.Fatalf("Expected status %d, got %d: %s", expected, actual, rec.Body.String())
	}
}

func TestUploadHTMLEndToEnd(t *testing.T) {
	u := newUpstreams(t)
	router := newTestRouter(t, u, &memoryBlobs{objects: map[string][]byte{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/upload", "Dog Photo.JPG", testJPEG(t)))

	if expected, actual := http.StatusOK, rec.Code; expected != actual {
		t.Fatalf("Expected status %d, got %d", expected, actual)
	}
	body := rec.Body.String()
	for _, want := range []string{"_Dog_Photo.JPG", "a dog sitting on a lawn", "a red ball", "A dog waits on the lawn next to a red ball."} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected result page to contain %q", want)
		}
	}
}
