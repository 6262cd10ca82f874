package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/makeasinger/mediajobs/internal/service"
	"github.com/makeasinger/mediajobs/pkg/response"
)

// jobHandler serves the status, result and cancel routes shared by every queue
type jobHandler struct {
	service *service.JobService
}

func (h *jobHandler) queueName() string {
	return h.service.Queue().Name()
}

// Status handles GET /status/:jobId
func (h *jobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetJobStatus(jobID)
	if err != nil {
		return respondJobError(c, h.queueName(), err)
	}

	return response.OK(c, result)
}

// Result handles GET /result/:jobId
func (h *jobHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetJobResult(jobID)
	if err != nil {
		return respondJobError(c, h.queueName(), err)
	}

	return response.OK(c, result)
}

// Cancel handles POST /cancel/:jobId
func (h *jobHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.CancelJob(jobID)
	if err != nil {
		return respondJobError(c, h.queueName(), err)
	}

	return response.OK(c, result)
}

// StatsHandler reports queue counters
type StatsHandler struct {
	queues *service.Queues
}

func NewStatsHandler(queues *service.Queues) *StatsHandler {
	return &StatsHandler{queues: queues}
}

// Stats handles GET /api/jobs/stats
func (h *StatsHandler) Stats(c *fiber.Ctx) error {
	return response.OK(c, h.queues.Stats())
}
