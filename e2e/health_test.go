package e2e

import (
	"net/http"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	ta := setupApp(t, "http://worker.local/webhook")

	resp, err := doRequest(ta.app, "GET", "/health", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["status"] != "ok" {
		t.Errorf("expected status ok, got %v", result["status"])
	}

	services, ok := result["services"].(map[string]interface{})
	if !ok {
		t.Fatal("expected services map")
	}
	if services["worker"] != true {
		t.Error("expected worker to report configured")
	}
}
