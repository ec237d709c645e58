package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/photofuse/api/internal/middleware"
	"github.com/photofuse/api/internal/model"
	"github.com/photofuse/api/internal/service"
	"github.com/photofuse/api/internal/store"
	"github.com/photofuse/api/pkg/response"
)

type JobHandler struct {
	service   *service.JobService
	validator *validator.Validate
}

func NewJobHandler(svc *service.JobService, v *validator.Validate) *JobHandler {
	return &JobHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/jobs. The call blocks on the synchronous worker
// dispatch and answers 201 for every schema-valid submission; the dispatch
// outcome is carried in the response status field.
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var req model.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Both images are required", formatValidationErrors(err))
	}

	result, err := h.service.Submit(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		if errors.Is(err, service.ErrMissingImages) {
			return response.ValidationError(c, "Both images are required", nil)
		}
		return response.StoreError(c, "Failed to create job")
	}

	return response.Created(c, result)
}

// Get handles GET /api/jobs/:id, the poll target. A job owned by another
// user reads as not found.
func (h *JobHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.GetJob(c.Context(), jobID, middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.StoreError(c, "Failed to load job")
	}

	return response.OK(c, job)
}

// List handles GET /api/jobs
func (h *JobHandler) List(c *fiber.Ctx) error {
	jobs, err := h.service.ListJobs(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return response.StoreError(c, "Failed to list jobs")
	}

	return response.OK(c, jobs)
}
