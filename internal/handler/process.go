package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/makeasinger/mediajobs/internal/model"
	"github.com/makeasinger/mediajobs/internal/service"
	"github.com/makeasinger/mediajobs/pkg/response"
)

type ProcessHandler struct {
	jobHandler
	validator *validator.Validate
}

func NewProcessHandler(svc *service.JobService, v *validator.Validate) *ProcessHandler {
	return &ProcessHandler{
		jobHandler: jobHandler{service: svc},
		validator:  v,
	}
}

// Submit handles POST /api/process/:kind
func (h *ProcessHandler) Submit(c *fiber.Ctx) error {
	kind := jobs.Kind(c.Params("kind"))

	var params any
	switch kind {
	case jobs.KindImage:
		var req model.ImageParams
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
		params = req
	case jobs.KindVideo:
		var req model.VideoParams
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
		params = req
	case jobs.KindAudio:
		var req model.AudioParams
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
		params = req
	default:
		return response.ValidationError(c, "Unsupported processing kind", fiber.Map{
			"kind":      kind,
			"supported": h.service.Queue().Kinds(),
		})
	}

	if err := h.validator.Struct(params); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartJob(kind, params)
	if err != nil {
		return respondJobError(c, h.queueName(), err)
	}

	return response.Accepted(c, result)
}
