package handler

import (
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/makeasinger/mediajobs/internal/model"
	"github.com/makeasinger/mediajobs/internal/service"
	"github.com/makeasinger/mediajobs/pkg/response"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

var allowedAssetTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"image/gif":       true,
	"audio/wav":       true,
	"audio/x-wav":     true,
	"audio/mpeg":      true,
	"audio/mp4":       true,
	"audio/aac":       true,
	"audio/flac":      true,
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
}

type UploadHandler struct {
	jobHandler
	uploads   *service.UploadService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.UploadService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		jobHandler: jobHandler{service: svc.JobService},
		uploads:    svc,
		validator:  v,
	}
}

// Asset handles POST /api/upload/asset
func (h *UploadHandler) Asset(c *fiber.Ctx) error {
	projectID := c.FormValue("projectId")
	if projectID == "" {
		return response.ValidationError(c, "projectId is required", nil)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	contentType := file.Header.Get("Content-Type")
	if !allowedAssetTypes[contentType] {
		return response.ValidationError(c, "Unsupported file type", map[string]interface{}{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return response.ServiceError(c, "Failed to read file")
	}

	params := model.UploadParams{
		ProjectID:   projectID,
		FileName:    file.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
	}
	if err := h.validator.Struct(&params); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.uploads.UploadAsset(params)
	if err != nil {
		return respondJobError(c, h.queueName(), err)
	}

	return response.Accepted(c, result)
}

// URL handles GET /api/upload/url/:jobId
func (h *UploadHandler) URL(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.uploads.AssetURL(c.UserContext(), jobID)
	if err != nil {
		return respondJobError(c, h.queueName(), err)
	}

	return response.OK(c, result)
}

// DeleteAsset handles DELETE /api/upload/asset/:jobId
func (h *UploadHandler) DeleteAsset(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.uploads.DeleteAsset(c.UserContext(), jobID); err != nil {
		return respondJobError(c, h.queueName(), err)
	}

	return response.NoContent(c)
}
