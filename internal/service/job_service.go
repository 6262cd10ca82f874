package service

import (
	"errors"

	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/makeasinger/mediajobs/internal/model"
)

// ErrJobNotCompleted is returned when a result is requested before completion
var ErrJobNotCompleted = errors.New("job not completed")

// JobService exposes one queue to the HTTP layer
type JobService struct {
	queue *jobs.Queue
}

// NewJobService creates a new job service
func NewJobService(queue *jobs.Queue) *JobService {
	return &JobService{queue: queue}
}

// Queue returns the underlying queue
func (s *JobService) Queue() *jobs.Queue {
	return s.queue
}

// StartJob admits a new job
func (s *JobService) StartJob(kind jobs.Kind, params any) (*model.JobStartResponse, error) {
	rec, err := s.queue.Submit(kind, params)
	if err != nil {
		return nil, err
	}

	return &model.JobStartResponse{
		JobID:     rec.ID,
		Kind:      rec.Kind,
		Status:    rec.State,
		CreatedAt: rec.SubmittedAt,
	}, nil
}

// GetJobStatus retrieves job status
func (s *JobService) GetJobStatus(jobID string) (*model.JobStatusResponse, error) {
	rec, err := s.queue.Status(jobID)
	if err != nil {
		return nil, err
	}
	return model.NewJobStatusResponse(rec), nil
}

// GetJobResult retrieves the result of a completed job
func (s *JobService) GetJobResult(jobID string) (any, error) {
	rec, err := s.queue.Status(jobID)
	if err != nil {
		return nil, err
	}
	if rec.State != jobs.StateCompleted {
		return nil, ErrJobNotCompleted
	}
	return rec.Result, nil
}

// CancelJob cancels a queued or running job
func (s *JobService) CancelJob(jobID string) (*model.JobCancelResponse, error) {
	if err := s.queue.CancelJob(jobID); err != nil {
		return nil, err
	}

	return &model.JobCancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  jobs.StateCancelled,
	}, nil
}
