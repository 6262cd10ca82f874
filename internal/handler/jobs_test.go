package handler_test

import (
	"net/http"
	"testing"
	"time"
)

func TestJobsStats(t *testing.T) {
	ta := setupApp(t, testOptions{stepDelay: time.Hour})
	for i := 0; i < 5; i++ {
		startRender(t, ta)
	}

	resp := doAuthRequest(t, ta, http.MethodGet, "/api/jobs/stats", "")
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	for _, name := range []string{"render", "processing", "upload"} {
		if _, ok := result[name]; !ok {
			t.Errorf("expected stats for queue %s", name)
		}
	}

	render, _ := result["render"].(map[string]interface{})
	if render["running"] != float64(3) {
		t.Errorf("expected 3 running render jobs, got %v", render["running"])
	}
	if render["queued"] != float64(2) {
		t.Errorf("expected 2 queued render jobs, got %v", render["queued"])
	}
}
