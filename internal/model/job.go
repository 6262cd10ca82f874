package model

import (
	"time"

	"github.com/makeasinger/mediajobs/internal/jobs"
)

// JobStartResponse is returned when a job is admitted
type JobStartResponse struct {
	JobID     string     `json:"jobId"`
	Kind      jobs.Kind  `json:"kind"`
	Status    jobs.State `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

// JobStatusResponse represents the status of a job
type JobStatusResponse struct {
	JobID       string     `json:"jobId"`
	Kind        jobs.Kind  `json:"kind"`
	Status      jobs.State `json:"status"`
	Progress    int        `json:"progress"`
	Error       *string    `json:"error"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// JobCancelResponse represents the response when cancelling a job
type JobCancelResponse struct {
	Success bool       `json:"success"`
	JobID   string     `json:"jobId"`
	Status  jobs.State `json:"status"`
}

// NewJobStatusResponse maps a record snapshot onto the API shape.
func NewJobStatusResponse(rec jobs.Record) *JobStatusResponse {
	resp := &JobStatusResponse{
		JobID:       rec.ID,
		Kind:        rec.Kind,
		Status:      rec.State,
		Progress:    rec.Progress,
		CreatedAt:   rec.SubmittedAt,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.FinishedAt,
	}
	if rec.State == jobs.StateFailed {
		msg := rec.Error
		resp.Error = &msg
	}
	return resp
}
