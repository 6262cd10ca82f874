package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/makeasinger/mediajobs/internal/config"
	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/makeasinger/mediajobs/internal/worker"
	"golang.org/x/sync/errgroup"
)

// Queue names
const (
	QueueRender     = "render"
	QueueProcessing = "processing"
	QueueUpload     = "upload"
)

// Queues holds the three queue profiles
type Queues struct {
	Render     *jobs.Queue
	Processing *jobs.Queue
	Upload     *jobs.Queue
}

// Workers bundles the executors behind the queue profiles
type Workers struct {
	Render *worker.RenderWorker
	Media  *worker.MediaWorker
	Upload *worker.UploadWorker
}

// NewQueues builds the render, processing and upload queues.
// Running uploads cannot be cancelled.
func NewQueues(cfg *config.Config, v *validator.Validate, w Workers) *Queues {
	ttl := cfg.Retention.TTL

	processingOpts := []jobs.Option{jobs.WithValidator(v)}
	for kind, exec := range w.Media.Executors() {
		processingOpts = append(processingOpts, jobs.WithExecutor(kind, exec))
	}

	return &Queues{
		Render: jobs.New(profile(QueueRender, cfg.Queues.Render, true, ttl),
			jobs.WithValidator(v),
			jobs.WithExecutor(jobs.KindRender, w.Render),
		),
		Processing: jobs.New(profile(QueueProcessing, cfg.Queues.Processing, true, ttl), processingOpts...),
		Upload: jobs.New(profile(QueueUpload, cfg.Queues.Upload, false, ttl),
			jobs.WithValidator(v),
			jobs.WithExecutor(jobs.KindUpload, w.Upload),
		),
	}
}

func profile(name string, qc config.QueueConfig, cancelRunning bool, ttl time.Duration) jobs.Config {
	return jobs.Config{
		Name:          name,
		Concurrency:   qc.Concurrency,
		Capacity:      qc.Capacity,
		CancelRunning: cancelRunning,
		Timeout:       qc.Timeout,
		Retention:     retention(qc, ttl),
	}
}

func retention(qc config.QueueConfig, ttl time.Duration) time.Duration {
	if qc.Retention > 0 {
		return qc.Retention
	}
	return ttl
}

// All returns the queues in a stable order
func (q *Queues) All() []*jobs.Queue {
	return []*jobs.Queue{q.Render, q.Processing, q.Upload}
}

// Stats returns counters keyed by queue name
func (q *Queues) Stats() map[string]jobs.Stats {
	stats := make(map[string]jobs.Stats, 3)
	for _, queue := range q.All() {
		stats[queue.Name()] = queue.Stats()
	}
	return stats
}

// Shutdown drains every queue in parallel
func (q *Queues) Shutdown(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, queue := range q.All() {
		queue := queue
		g.Go(func() error {
			return queue.Shutdown(ctx)
		})
	}
	return g.Wait()
}
