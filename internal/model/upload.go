package model

import "time"

// UploadParams describes an asset upload job. Data is held in memory until the job runs.
type UploadParams struct {
	ProjectID   string `json:"projectId" validate:"required,uuid"`
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	Size        int64  `json:"size" validate:"required,min=1,max=52428800"`
	Data        []byte `json:"-" validate:"required"`
}

// UploadResult is produced by a completed upload job
type UploadResult struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	FileURL     string    `json:"fileUrl"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}
