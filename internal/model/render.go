package model

import "time"

// RenderParams describes a render job
type RenderParams struct {
	ProjectID  string       `json:"projectId" validate:"required,uuid"`
	Format     RenderFormat `json:"format" validate:"required,oneof=mp4 webm mov gif"`
	Quality    Quality      `json:"quality" validate:"required,oneof=low medium high"`
	Resolution Resolution   `json:"resolution" validate:"required,oneof=480p 720p 1080p 4k"`
	FPS        int          `json:"fps" validate:"omitempty,oneof=24 30 60"`
	// Duration of the composition in seconds
	Duration int `json:"duration" validate:"required,min=1,max=600"`
}

// RenderResult is produced by a completed render job
type RenderResult struct {
	ID         string       `json:"id"`
	FileURL    string       `json:"fileUrl"`
	Format     RenderFormat `json:"format"`
	Resolution Resolution   `json:"resolution"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	FPS        int          `json:"fps"`
	Duration   float64      `json:"duration"`
	Size       int64        `json:"size"`
	CreatedAt  time.Time    `json:"createdAt"`
}
