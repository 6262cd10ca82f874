package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/makeasinger/mediajobs/internal/client"
	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/makeasinger/mediajobs/internal/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// UploadWorker delivers uploaded assets to object storage
type UploadWorker struct {
	storage client.StorageClient
	cdnURL  string
	logger  zerolog.Logger
}

// NewUploadWorker creates a new upload worker. A nil storage client produces mock URLs.
func NewUploadWorker(storage client.StorageClient, cdnURL string) *UploadWorker {
	return &UploadWorker{
		storage: storage,
		cdnURL:  cdnURL,
		logger:  log.With().Str("worker", "upload").Logger(),
	}
}

// Accepts reports whether params is an upload request
func (w *UploadWorker) Accepts(params any) bool {
	_, ok := params.(model.UploadParams)
	return ok
}

// Execute stores the asset and returns a *model.UploadResult
func (w *UploadWorker) Execute(ctx context.Context, params any, progress jobs.ProgressFunc) (any, error) {
	payload, ok := params.(model.UploadParams)
	if !ok {
		return nil, fmt.Errorf("invalid upload payload %T", params)
	}

	id := uuid.New().String()
	key := fmt.Sprintf("assets/%s/%s%s", payload.ProjectID, id, strings.ToLower(path.Ext(payload.FileName)))
	logger := w.logger.With().Str("project_id", payload.ProjectID).Str("key", key).Logger()

	progress(5)

	var fileURL string
	if w.storage == nil {
		fileURL = fmt.Sprintf("%s/%s", w.cdnURL, key)
		progress(95)
	} else {
		body := &progressReader{
			ctx:      ctx,
			r:        bytes.NewReader(payload.Data),
			total:    int64(len(payload.Data)),
			progress: progress,
		}
		url, err := w.storage.Upload(ctx, key, body, payload.ContentType)
		if err != nil {
			logger.Error().Err(err).Msg("asset upload failed")
			return nil, fmt.Errorf("failed to upload asset: %w", err)
		}
		fileURL = url
	}

	logger.Info().Int64("size", payload.Size).Msg("asset uploaded")

	return &model.UploadResult{
		ID:          id,
		Key:         key,
		FileURL:     fileURL,
		ContentType: payload.ContentType,
		Size:        int64(len(payload.Data)),
		CreatedAt:   time.Now(),
	}, nil
}

// Delete removes a stored asset
func (w *UploadWorker) Delete(ctx context.Context, key string) error {
	if w.storage == nil {
		return nil
	}
	return w.storage.Delete(ctx, key)
}

// SignedURL returns a temporary download URL for a stored asset
func (w *UploadWorker) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if w.storage == nil {
		return fmt.Sprintf("%s/%s", w.cdnURL, key), nil
	}
	return w.storage.GetSignedURL(ctx, key, expiry)
}

var _ io.ReadSeeker = (*progressReader)(nil)

// progressReader maps bytes read onto the 5..95 progress range and stops on cancellation.
type progressReader struct {
	ctx      context.Context
	r        *bytes.Reader
	read     int64
	total    int64
	progress jobs.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 && n > 0 {
		p.progress(5 + int(p.read*90/p.total))
	}
	return n, err
}

// Seek lets the SDK rewind the body for checksums and retries.
func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.r.Seek(offset, whence)
	if err == nil {
		p.read = pos
	}
	return pos, err
}
