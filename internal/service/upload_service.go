package service

import (
	"context"
	"fmt"
	"time"

	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/makeasinger/mediajobs/internal/model"
	"github.com/makeasinger/mediajobs/internal/worker"
)

const assetURLExpiry = 15 * time.Minute

// AssetURLResponse carries a temporary download link
type AssetURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadService handles asset uploads through the upload queue
type UploadService struct {
	*JobService
	worker *worker.UploadWorker
}

// NewUploadService creates a new upload service
func NewUploadService(queue *jobs.Queue, w *worker.UploadWorker) *UploadService {
	return &UploadService{
		JobService: NewJobService(queue),
		worker:     w,
	}
}

// UploadAsset queues an asset for delivery to storage
func (s *UploadService) UploadAsset(params model.UploadParams) (*model.JobStartResponse, error) {
	return s.StartJob(jobs.KindUpload, params)
}

// AssetURL returns a presigned URL for a completed upload
func (s *UploadService) AssetURL(ctx context.Context, jobID string) (*AssetURLResponse, error) {
	res, err := s.uploadResult(jobID)
	if err != nil {
		return nil, err
	}

	url, err := s.worker.SignedURL(ctx, res.Key, assetURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign asset url: %w", err)
	}

	return &AssetURLResponse{
		URL:       url,
		ExpiresAt: time.Now().Add(assetURLExpiry),
	}, nil
}

// DeleteAsset removes the stored object of a completed upload
func (s *UploadService) DeleteAsset(ctx context.Context, jobID string) error {
	res, err := s.uploadResult(jobID)
	if err != nil {
		return err
	}
	return s.worker.Delete(ctx, res.Key)
}

func (s *UploadService) uploadResult(jobID string) (*model.UploadResult, error) {
	out, err := s.GetJobResult(jobID)
	if err != nil {
		return nil, err
	}
	res, ok := out.(*model.UploadResult)
	if !ok {
		return nil, fmt.Errorf("unexpected upload result %T", out)
	}
	return res, nil
}
