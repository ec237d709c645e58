package handler

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/photofuse/api/internal/auth"
	"github.com/photofuse/api/internal/model"
	"github.com/photofuse/api/internal/service"
	"github.com/photofuse/api/internal/store"
	"github.com/photofuse/api/pkg/response"
)

// SignatureHeader carries the worker's HMAC digest of the callback body.
const SignatureHeader = "X-Worker-Signature"

// WebhookHandler receives asynchronous status notifications from the
// external worker. This path is not session-authenticated; the signature
// check is its sole integrity boundary.
type WebhookHandler struct {
	service  *service.JobService
	verifier *auth.WebhookVerifier
}

func NewWebhookHandler(svc *service.JobService, verifier *auth.WebhookVerifier) *WebhookHandler {
	return &WebhookHandler{
		service:  svc,
		verifier: verifier,
	}
}

// HandleWorkerCallback handles POST /webhooks/worker
func (h *WebhookHandler) HandleWorkerCallback(c *fiber.Ctx) error {
	body := c.Body()

	if !h.verifier.Verify(body, c.Get(SignatureHeader)) {
		log.Printf("Rejected worker callback with invalid signature")
		return response.Unauthorized(c, "Invalid signature")
	}

	var req model.WorkerCallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return response.ValidationError(c, "Invalid callback body", nil)
	}

	result, err := h.service.HandleCallback(c.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCallback) {
			return response.ValidationError(c, "Missing required fields", nil)
		}
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.StoreError(c, "Failed to update job")
	}

	return response.OK(c, result)
}
