package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/mediajobs/internal/client"
	"github.com/makeasinger/mediajobs/internal/config"
	"github.com/makeasinger/mediajobs/internal/handler"
	"github.com/makeasinger/mediajobs/internal/middleware"
	"github.com/makeasinger/mediajobs/internal/model"
	"github.com/makeasinger/mediajobs/internal/service"
	"github.com/makeasinger/mediajobs/internal/worker"
)

const testJWTSecret = "test-secret-for-handlers"

type testOptions struct {
	stepDelay      time.Duration
	renderCapacity int
	storage        client.StorageClient
}

// testApp holds all components needed for testing
type testApp struct {
	app    *fiber.App
	queues *service.Queues
	auth   *middleware.AuthMiddleware
}

// setupApp wires the same routes as main.go without redis; the rate limiter is a no-op.
func setupApp(t *testing.T, opts testOptions) *testApp {
	t.Helper()

	if opts.renderCapacity == 0 {
		opts.renderCapacity = 100
	}
	cfg := &config.Config{
		Queues: config.QueuesConfig{
			Render:     config.QueueConfig{Concurrency: 3, Capacity: opts.renderCapacity},
			Processing: config.QueueConfig{Concurrency: 3},
			Upload:     config.QueueConfig{Concurrency: 1},
		},
		Retention: config.RetentionConfig{TTL: time.Hour},
	}

	validate := model.NewValidator()
	uploadWorker := worker.NewUploadWorker(opts.storage, "https://cdn.test")
	queues := service.NewQueues(cfg, validate, service.Workers{
		Render: worker.NewRenderWorker(opts.stepDelay, "https://cdn.test"),
		Media:  worker.NewMediaWorker(opts.stepDelay, "https://cdn.test"),
		Upload: uploadWorker,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		queues.Shutdown(ctx)
	})

	renderHandler := handler.NewRenderHandler(service.NewJobService(queues.Render), validate)
	processHandler := handler.NewProcessHandler(service.NewJobService(queues.Processing), validate)
	uploadHandler := handler.NewUploadHandler(service.NewUploadService(queues.Upload, uploadWorker), validate)
	statsHandler := handler.NewStatsHandler(queues)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret, time.Hour)
	rateLimiter := middleware.NewRateLimiter(nil)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	render := api.Group("/render")
	render.Post("/start", rateLimiter.RenderLimit(10000), renderHandler.Start)
	render.Get("/status/:jobId", renderHandler.Status)
	render.Get("/result/:jobId", renderHandler.Result)
	render.Post("/cancel/:jobId", renderHandler.Cancel)

	process := api.Group("/process")
	process.Get("/status/:jobId", processHandler.Status)
	process.Get("/result/:jobId", processHandler.Result)
	process.Post("/cancel/:jobId", processHandler.Cancel)
	process.Post("/:kind", rateLimiter.ProcessLimit(10000), processHandler.Submit)

	upload := api.Group("/upload")
	upload.Post("/asset", rateLimiter.UploadLimit(10000), uploadHandler.Asset)
	upload.Delete("/asset/:jobId", uploadHandler.DeleteAsset)
	upload.Get("/status/:jobId", uploadHandler.Status)
	upload.Get("/result/:jobId", uploadHandler.Result)
	upload.Get("/url/:jobId", uploadHandler.URL)
	upload.Post("/cancel/:jobId", uploadHandler.Cancel)

	api.Get("/jobs/stats", statsHandler.Stats)

	return &testApp{app: app, queues: queues, auth: authMiddleware}
}

// generateToken creates a signed token for test requests.
func generateToken(t *testing.T, ta *testApp) string {
	t.Helper()
	token, err := ta.auth.GenerateToken("test-user-123", "test@example.com")
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request and fails the test on transport errors.
func doAuthRequest(t *testing.T, ta *testApp, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doRequest(ta.app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t, ta),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// createMultipartAssetRequest builds a multipart/form-data upload request.
func createMultipartAssetRequest(t *testing.T, token, projectID, contentType string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if projectID != "" {
		_ = writer.WriteField("projectId", projectID)
	}
	if data != nil {
		partHeader := make(textproto.MIMEHeader)
		partHeader.Set("Content-Disposition", `form-data; name="file"; filename="cover.png"`)
		partHeader.Set("Content-Type", contentType)
		part, err := writer.CreatePart(partHeader)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		_, _ = part.Write(data)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/upload/asset", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode extracts error.code from an error envelope.
func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

// waitForStatus polls a status endpoint until the job reaches want.
func waitForStatus(t *testing.T, ta *testApp, path, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp := doAuthRequest(t, ta, http.MethodGet, path, "")
		body := parseJSON(t, resp)
		if body["status"] == want {
			return body
		}
		if time.Now().After(deadline) {
			t.Fatalf("status never reached %s, last: %v", want, body)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// blockingStorage holds every upload until release is closed.
type blockingStorage struct {
	release chan struct{}
	once    sync.Once
}

func newBlockingStorage() *blockingStorage {
	return &blockingStorage{release: make(chan struct{})}
}

func (s *blockingStorage) unblock() {
	s.once.Do(func() { close(s.release) })
}

func (s *blockingStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	select {
	case <-s.release:
		return s.GetPublicURL(key), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *blockingStorage) Delete(ctx context.Context, key string) error { return nil }

func (s *blockingStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return s.GetPublicURL(key), nil
}

func (s *blockingStorage) GetPublicURL(key string) string {
	return "https://store.test/" + key
}
