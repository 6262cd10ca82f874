package handler_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
)

func validRenderStartBody() string {
	return fmt.Sprintf(`{
		"projectId": "%s",
		"format": "mp4",
		"quality": "medium",
		"resolution": "1080p",
		"fps": 30,
		"duration": 12
	}`, uuid.New().String())
}

func startRender(t *testing.T, ta *testApp) string {
	t.Helper()
	resp := doAuthRequest(t, ta, http.MethodPost, "/api/render/start", validRenderStartBody())
	assertStatus(t, resp, http.StatusAccepted)
	result := parseJSON(t, resp)
	jobID, _ := result["jobId"].(string)
	if jobID == "" {
		t.Fatalf("expected 'jobId' in response, got %v", result)
	}
	return jobID
}

func TestRenderStart_Success(t *testing.T) {
	ta := setupApp(t, testOptions{stepDelay: time.Hour})

	resp := doAuthRequest(t, ta, http.MethodPost, "/api/render/start", validRenderStartBody())
	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["jobId"] == nil || result["jobId"] == "" {
		t.Error("expected 'jobId' in response")
	}
	if result["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", result["status"])
	}
	if result["kind"] != "render" {
		t.Errorf("expected kind 'render', got %v", result["kind"])
	}
}

func TestRenderStart_NoAuth(t *testing.T) {
	ta := setupApp(t, testOptions{})

	resp, err := doRequest(ta.app, http.MethodPost, "/api/render/start", validRenderStartBody(), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestRenderStart_InvalidToken(t *testing.T) {
	ta := setupApp(t, testOptions{})

	resp, err := doRequest(ta.app, http.MethodPost, "/api/render/start", validRenderStartBody(), map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestRenderStart_InvalidBody(t *testing.T) {
	ta := setupApp(t, testOptions{})

	resp := doAuthRequest(t, ta, http.MethodPost, "/api/render/start", `{"projectId": "not-a-uuid", "format": "avi"}`)
	assertStatus(t, resp, http.StatusBadRequest)

	result := parseJSON(t, resp)
	if code := errorCode(t, result); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
	details, _ := result["error"].(map[string]interface{})["details"].(map[string]interface{})
	if details["projectId"] != "uuid" {
		t.Errorf("expected projectId to fail 'uuid', got %v", details["projectId"])
	}
	if details["format"] != "oneof" {
		t.Errorf("expected format to fail 'oneof', got %v", details["format"])
	}

	stats := ta.queues.Render.Stats()
	if stats.Queued+stats.Running != 0 {
		t.Errorf("rejected request must not create a job, got %+v", stats)
	}
}

func TestRenderStart_QueueFull(t *testing.T) {
	ta := setupApp(t, testOptions{stepDelay: time.Hour, renderCapacity: 4})

	for i := 0; i < 4; i++ {
		startRender(t, ta)
	}

	resp := doAuthRequest(t, ta, http.MethodPost, "/api/render/start", validRenderStartBody())
	assertStatus(t, resp, http.StatusTooManyRequests)
	if code := errorCode(t, parseJSON(t, resp)); code != "QUEUE_FULL" {
		t.Errorf("expected QUEUE_FULL, got %s", code)
	}
}

func TestRenderStatus_Success(t *testing.T) {
	ta := setupApp(t, testOptions{stepDelay: time.Hour})
	jobID := startRender(t, ta)

	resp := doAuthRequest(t, ta, http.MethodGet, "/api/render/status/"+jobID, "")
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["jobId"] != jobID {
		t.Errorf("expected jobId %s, got %v", jobID, result["jobId"])
	}
	if result["status"] != "running" {
		t.Errorf("expected status 'running', got %v", result["status"])
	}
}

func TestRenderStatus_NotFound(t *testing.T) {
	ta := setupApp(t, testOptions{})

	resp := doAuthRequest(t, ta, http.MethodGet, "/api/render/status/"+uuid.New().String(), "")
	assertStatus(t, resp, http.StatusNotFound)

	if code := errorCode(t, parseJSON(t, resp)); code != "NOT_FOUND" {
		t.Errorf("expected error code NOT_FOUND, got %s", code)
	}
}

func TestRenderResult_Completed(t *testing.T) {
	ta := setupApp(t, testOptions{})
	jobID := startRender(t, ta)

	status := waitForStatus(t, ta, "/api/render/status/"+jobID, "completed")
	if status["progress"] != float64(100) {
		t.Errorf("expected progress 100, got %v", status["progress"])
	}

	resp := doAuthRequest(t, ta, http.MethodGet, "/api/render/result/"+jobID, "")
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["fileUrl"] == nil || result["fileUrl"] == "" {
		t.Error("expected 'fileUrl' in result")
	}
	if result["width"] != float64(1920) {
		t.Errorf("expected width 1920, got %v", result["width"])
	}
}

func TestRenderResult_NotCompleted(t *testing.T) {
	ta := setupApp(t, testOptions{stepDelay: time.Hour})
	jobID := startRender(t, ta)

	resp := doAuthRequest(t, ta, http.MethodGet, "/api/render/result/"+jobID, "")
	assertStatus(t, resp, http.StatusConflict)
}

func TestRenderCancel_Success(t *testing.T) {
	ta := setupApp(t, testOptions{stepDelay: time.Hour})
	jobID := startRender(t, ta)

	resp := doAuthRequest(t, ta, http.MethodPost, "/api/render/cancel/"+jobID, "")
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["success"] != true {
		t.Errorf("expected success true, got %v", result["success"])
	}
	if result["status"] != "cancelled" {
		t.Errorf("expected status 'cancelled', got %v", result["status"])
	}

	// A second cancel hits a terminal job
	resp = doAuthRequest(t, ta, http.MethodPost, "/api/render/cancel/"+jobID, "")
	assertStatus(t, resp, http.StatusConflict)
	if code := errorCode(t, parseJSON(t, resp)); code != "CONFLICT" {
		t.Errorf("expected CONFLICT, got %s", code)
	}
}

func TestRenderCancel_NotFound(t *testing.T) {
	ta := setupApp(t, testOptions{})

	resp := doAuthRequest(t, ta, http.MethodPost, "/api/render/cancel/"+uuid.New().String(), "")
	assertStatus(t, resp, http.StatusNotFound)
}
