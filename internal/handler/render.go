package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/makeasinger/mediajobs/internal/model"
	"github.com/makeasinger/mediajobs/internal/service"
	"github.com/makeasinger/mediajobs/pkg/response"
)

type RenderHandler struct {
	jobHandler
	validator *validator.Validate
}

func NewRenderHandler(svc *service.JobService, v *validator.Validate) *RenderHandler {
	return &RenderHandler{
		jobHandler: jobHandler{service: svc},
		validator:  v,
	}
}

// Start handles POST /api/render/start
func (h *RenderHandler) Start(c *fiber.Ctx) error {
	var req model.RenderParams
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartJob(jobs.KindRender, req)
	if err != nil {
		return respondJobError(c, h.queueName(), err)
	}

	return response.Accepted(c, result)
}
