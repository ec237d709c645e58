package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/photofuse/api/internal/auth"
	"github.com/photofuse/api/internal/client"
	"github.com/photofuse/api/internal/config"
	"github.com/photofuse/api/internal/handler"
	"github.com/photofuse/api/internal/middleware"
	"github.com/photofuse/api/internal/service"
	"github.com/photofuse/api/internal/store"
)

const (
	testJWTSecret     = "test-secret-for-e2e"
	testWebhookSecret = "test-webhook-secret"
	testUserID        = "test-user-123"
)

// tinyPNG is a valid single-pixel payload, base64 encoded.
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	store    *store.MemoryStore
	verifier *auth.WebhookVerifier
}

// workerStub returns an httptest server that answers every dispatch with the
// given status and body. A 2xx body stands in for the generated image.
func workerStub(t *testing.T, status int, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupApp creates a Fiber app wired like main.go, but on the in-memory
// store and with the worker pointed at a stub endpoint.
func setupApp(t *testing.T, workerURL string) *testApp {
	t.Helper()

	// Redis may not be running; the rate limiter fails open.
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	validate := validator.New()

	st := store.NewMemoryStore()

	workerClient := client.NewWorkerClient(&config.WorkerConfig{
		WebhookURL: workerURL,
		Timeout:    5,
	})

	jobService := service.NewJobService(st, st, workerClient, nil, nil)
	jobHandler := handler.NewJobHandler(jobService, validate)

	webhookVerifier := auth.NewWebhookVerifier(testWebhookSecret)
	webhookHandler := handler.NewWebhookHandler(jobService, webhookVerifier)

	authMiddleware := middleware.NewAuthMiddleware(nil, testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"store":  true,
				"worker": workerClient.IsConfigured(),
				"r2":     false,
				"auth":   true,
			},
		})
	})

	api := app.Group("/api", authMiddleware.Authenticate())
	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.JobsLimit(10000), jobHandler.Create)
	jobs.Get("/", jobHandler.List)
	jobs.Get("/:id", jobHandler.Get)

	app.Post("/webhooks/worker", webhookHandler.HandleWorkerCallback)

	return &testApp{app: app, store: st, verifier: webhookVerifier}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T, userID string) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: userID,
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "photofuse-api",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
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

// doAuthRequest performs a request authenticated as the given user.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body, userID string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t, userID)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
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
