package e2e

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

func createBody(person, object, prompt string) string {
	b, _ := json.Marshal(map[string]string{
		"personImage": person,
		"objectImage": object,
		"prompt":      prompt,
	})
	return string(b)
}

func TestCreateJob_CompletesSynchronously(t *testing.T) {
	image, _ := base64.StdEncoding.DecodeString(tinyPNG)
	stub := workerStub(t, http.StatusOK, "image/png", image)
	ta := setupApp(t, stub.URL)

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/jobs",
		createBody(tinyPNG, tinyPNG, "put the hat on the person"), testUserID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	if result["status"] != "completed" {
		t.Errorf("expected status completed, got %v", result["status"])
	}
	jobID, _ := result["id"].(string)
	if jobID == "" {
		t.Fatal("expected a job id")
	}

	// The poll target should show the stored output.
	resp, err = doAuthRequest(t, ta.app, "GET", "/api/jobs/"+jobID, "", testUserID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	job := parseJSON(t, resp)
	if job["status"] != "completed" {
		t.Errorf("expected stored status completed, got %v", job["status"])
	}
	output, ok := job["output"].(map[string]interface{})
	if !ok {
		t.Fatal("expected output on completed job")
	}
	if output["mimeType"] != "image/png" {
		t.Errorf("expected mime image/png, got %v", output["mimeType"])
	}
	if output["imageBase64"] != tinyPNG {
		t.Error("expected generated image inline")
	}
	if job["completedAt"] == nil {
		t.Error("expected completedAt to be set")
	}
}

func TestCreateJob_MissingImageRejected(t *testing.T) {
	ta := setupApp(t, "")

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/jobs",
		createBody(tinyPNG, "", ""), testUserID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)

	// Schema rejection must leave no job behind.
	resp, err = doAuthRequest(t, ta.app, "GET", "/api/jobs", "", testUserID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	body := readBody(t, resp)
	if body != "[]" && body != "null" {
		t.Errorf("expected empty job list, got %s", body)
	}
}

func TestCreateJob_RequiresAuth(t *testing.T) {
	ta := setupApp(t, "")

	resp, err := doRequest(ta.app, "POST", "/api/jobs",
		createBody(tinyPNG, tinyPNG, ""), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestCreateJob_GatewayFailureBecomesFailedJob(t *testing.T) {
	stub := workerStub(t, http.StatusInternalServerError, "", nil)
	ta := setupApp(t, stub.URL)

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/jobs",
		createBody(tinyPNG, tinyPNG, ""), testUserID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	// Gateway trouble is a job outcome, never an HTTP error.
	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	if result["status"] != "failed" {
		t.Fatalf("expected status failed, got %v", result["status"])
	}

	jobID := result["id"].(string)
	resp, err = doAuthRequest(t, ta.app, "GET", "/api/jobs/"+jobID, "", testUserID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	job := parseJSON(t, resp)
	jobErr, ok := job["error"].(map[string]interface{})
	if !ok {
		t.Fatal("expected error on failed job")
	}
	if jobErr["code"] != "WORKER_ERROR" {
		t.Errorf("expected WORKER_ERROR, got %v", jobErr["code"])
	}
	if jobErr["retryable"] != true {
		t.Error("expected gateway failure to be retryable")
	}
}

func TestGetJob_ForeignOwnerReadsAsNotFound(t *testing.T) {
	image, _ := base64.StdEncoding.DecodeString(tinyPNG)
	stub := workerStub(t, http.StatusOK, "image/png", image)
	ta := setupApp(t, stub.URL)

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/jobs",
		createBody(tinyPNG, tinyPNG, ""), testUserID)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	jobID := parseJSON(t, resp)["id"].(string)

	resp, err = doAuthRequest(t, ta.app, "GET", "/api/jobs/"+jobID, "", "other-user-456")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)

	resp, err = doAuthRequest(t, ta.app, "GET", "/api/jobs", "", "other-user-456")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	body := readBody(t, resp)
	if body != "[]" && body != "null" {
		t.Errorf("expected empty list for other user, got %s", body)
	}
}

func TestListJobs_NewestFirst(t *testing.T) {
	image, _ := base64.StdEncoding.DecodeString(tinyPNG)
	stub := workerStub(t, http.StatusOK, "image/png", image)
	ta := setupApp(t, stub.URL)

	var ids []string
	for i := 0; i < 3; i++ {
		resp, err := doAuthRequest(t, ta.app, "POST", "/api/jobs",
			createBody(tinyPNG, tinyPNG, fmt.Sprintf("job %d", i)), testUserID)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		ids = append(ids, parseJSON(t, resp)["id"].(string))
	}

	resp, err := doAuthRequest(t, ta.app, "GET", "/api/jobs", "", testUserID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	var jobs []map[string]interface{}
	if err := json.Unmarshal([]byte(readBody(t, resp)), &jobs); err != nil {
		t.Fatalf("failed to parse list: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for i, job := range jobs {
		want := ids[len(ids)-1-i]
		if job["id"] != want {
			t.Errorf("position %d: expected %s, got %v", i, want, job["id"])
		}
	}
}
