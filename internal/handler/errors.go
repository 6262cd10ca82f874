package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/makeasinger/mediajobs/internal/service"
	"github.com/makeasinger/mediajobs/pkg/response"
	"github.com/rs/zerolog/log"
)

// respondJobError maps queue errors onto API error responses
func respondJobError(c *fiber.Ctx, queue string, err error) error {
	var verr *jobs.ValidationError
	switch {
	case errors.As(err, &verr):
		var details interface{}
		if len(verr.Fields) > 0 {
			details = verr.Fields
		}
		return response.ValidationError(c, verr.Message, details)
	case errors.Is(err, jobs.ErrQueueFull):
		return response.QueueFull(c, queue)
	case errors.Is(err, jobs.ErrNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, jobs.ErrInvalidState):
		return response.Conflict(c, "Job already finished", nil)
	case errors.Is(err, jobs.ErrNotCancellable):
		return response.Conflict(c, "Job is running and cannot be cancelled", nil)
	case errors.Is(err, service.ErrJobNotCompleted):
		return response.Conflict(c, "Job not completed yet", nil)
	case errors.Is(err, jobs.ErrQueueClosed):
		return response.Unavailable(c, "Queue is shutting down")
	}

	log.Error().Err(err).Str("queue", queue).Str("path", c.Path()).Msg("job request failed")
	return response.ServiceError(c, err.Error())
}

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string)
		for _, e := range validationErrors {
			fields[e.Field()] = e.Tag()
		}
		return fields
	}
	return nil
}
