package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is the profile of a queue.
type Config struct {
	Name string
	// Concurrency is the maximum number of executors running at once.
	Concurrency int
	// Capacity bounds queued+running records. Zero means unbounded.
	Capacity int
	// CancelRunning allows Cancel on jobs that already started.
	CancelRunning bool
	// Timeout is the per-job execution deadline. Zero disables it.
	Timeout time.Duration
	// Retention is how long terminal records are kept before Prune drops them. Zero keeps them forever.
	Retention time.Duration
}

// Queue runs jobs on a bounded number of goroutines in submission order.
type Queue struct {
	cfg       Config
	executors map[Kind]Executor
	validate  *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	records map[string]*entry
	pending []string
	running int
	slots   int
	seq     uint64
	closed  bool
	wg      sync.WaitGroup

	subMu   sync.RWMutex
	subs    []subscriber
	nextSub uint64
}

type entry struct {
	rec    Record
	seq    uint64
	cancel context.CancelFunc
}

// Option configures a Queue.
type Option func(*Queue)

// WithExecutor registers the executor for jobs of the given kind.
func WithExecutor(kind Kind, exec Executor) Option {
	return func(q *Queue) { q.executors[kind] = exec }
}

// WithValidator sets the validator used on submitted params.
func WithValidator(v *validator.Validate) Option {
	return func(q *Queue) { q.validate = v }
}

// WithLogger sets the queue logger.
func WithLogger(l zerolog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New creates a queue. It does not start any goroutine until work is submitted.
func New(cfg Config, opts ...Option) *Queue {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Capacity < 0 {
		cfg.Capacity = 0
	}
	q := &Queue{
		cfg:       cfg,
		executors: make(map[Kind]Executor),
		logger:    log.Logger,
		now:       time.Now,
		records:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.validate == nil {
		q.validate = validator.New()
	}
	q.logger = q.logger.With().Str("queue", cfg.Name).Logger()
	return q
}

// Name returns the profile name.
func (q *Queue) Name() string { return q.cfg.Name }

// Config returns the profile the queue was built with.
func (q *Queue) Config() Config { return q.cfg }

// Kinds returns the kinds this queue has executors for.
func (q *Queue) Kinds() []Kind {
	kinds := make([]Kind, 0, len(q.executors))
	for k := range q.executors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Submit validates params, admits a new queued job and returns its snapshot.
// It never waits for a free slot.
func (q *Queue) Submit(kind Kind, params any) (Record, error) {
	exec, ok := q.executors[kind]
	if !ok {
		return Record{}, &ValidationError{Kind: kind, Message: "unsupported job kind"}
	}
	if err := q.validateParams(kind, exec, params); err != nil {
		q.logger.Debug().Str("kind", string(kind)).Err(err).Msg("job rejected")
		return Record{}, err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return Record{}, ErrQueueClosed
	}
	if q.cfg.Capacity > 0 && len(q.pending)+q.running >= q.cfg.Capacity {
		q.mu.Unlock()
		q.logger.Debug().Str("kind", string(kind)).Int("capacity", q.cfg.Capacity).Msg("queue full")
		return Record{}, ErrQueueFull
	}

	q.seq++
	e := &entry{
		seq: q.seq,
		rec: Record{
			ID:          uuid.NewString(),
			Kind:        kind,
			State:       StateQueued,
			SubmittedAt: q.now(),
			Params:      params,
		},
	}
	q.records[e.rec.ID] = e
	q.pending = append(q.pending, e.rec.ID)
	events := []Event{q.eventLocked(EventQueued, e)}
	snap := e.rec.snapshot()
	events = q.dispatchLocked(events)
	q.mu.Unlock()

	q.publish(events)
	return snap, nil
}

func (q *Queue) validateParams(kind Kind, exec Executor, params any) error {
	if params == nil {
		return &ValidationError{Kind: kind, Message: "parameters are required"}
	}
	if pc, ok := exec.(ParamsChecker); ok && !pc.Accepts(params) {
		return &ValidationError{Kind: kind, Message: fmt.Sprintf("parameters of type %T do not match job kind", params)}
	}
	if err := q.validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return &ValidationError{Kind: kind, Message: "validation failed", Fields: fields}
		}
		return &ValidationError{Kind: kind, Message: err.Error()}
	}
	return nil
}

// dispatchLocked promotes queued jobs in FIFO order while slots are free.
func (q *Queue) dispatchLocked(events []Event) []Event {
	for !q.closed && q.slots < q.cfg.Concurrency && len(q.pending) > 0 {
		id := q.pending[0]
		q.pending[0] = ""
		q.pending = q.pending[1:]

		e, ok := q.records[id]
		if !ok || e.rec.State != StateQueued {
			continue
		}
		q.startLocked(e)
		events = append(events, q.eventLocked(EventStarted, e))
	}
	return events
}

func (q *Queue) startLocked(e *entry) {
	now := q.now()
	e.rec.State = StateRunning
	e.rec.StartedAt = &now
	q.running++
	q.slots++

	var ctx context.Context
	if q.cfg.Timeout > 0 {
		ctx, e.cancel = context.WithTimeout(context.Background(), q.cfg.Timeout)
	} else {
		ctx, e.cancel = context.WithCancel(context.Background())
	}

	exec := q.executors[e.rec.Kind]
	id, kind, params := e.rec.ID, e.rec.Kind, e.rec.Params

	q.logger.Info().Str("job_id", id).Str("kind", string(kind)).Msg("job started")

	q.wg.Add(1)
	go q.run(ctx, id, exec, params)
}

func (q *Queue) run(ctx context.Context, id string, exec Executor, params any) {
	defer q.wg.Done()
	result, err := q.execute(ctx, id, exec, params)
	q.finish(id, result, err, ctx.Err())
}

func (q *Queue) execute(ctx context.Context, id string, exec Executor, params any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return exec.Execute(ctx, params, func(percent int) { q.reportProgress(id, percent) })
}

func (q *Queue) reportProgress(id string, percent int) {
	q.mu.Lock()
	e, ok := q.records[id]
	if !ok || e.rec.State != StateRunning {
		q.mu.Unlock()
		return
	}
	// 100 is reserved for the completed transition.
	p := min(max(percent, 0), 99)
	if p <= e.rec.Progress {
		q.mu.Unlock()
		return
	}
	e.rec.Progress = p
	ev := q.eventLocked(EventProgress, e)
	q.mu.Unlock()

	q.publish([]Event{ev})
}

func (q *Queue) finish(id string, result any, err, ctxErr error) {
	q.mu.Lock()
	q.slots--

	var events []Event
	if e, ok := q.records[id]; ok {
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
		if e.rec.State == StateRunning {
			now := q.now()
			q.running--
			e.rec.FinishedAt = &now
			if err == nil {
				e.rec.State = StateCompleted
				e.rec.Progress = 100
				e.rec.Result = result
				events = append(events, q.eventLocked(EventCompleted, e))
				q.logger.Info().Str("job_id", id).Str("kind", string(e.rec.Kind)).Msg("job completed")
			} else {
				if errors.Is(ctxErr, context.DeadlineExceeded) {
					err = fmt.Errorf("execution timed out after %s", q.cfg.Timeout)
				}
				execErr := &ExecutionError{JobID: id, Err: err}
				e.rec.State = StateFailed
				e.rec.Error = execErr.Error()
				events = append(events, q.eventLocked(EventFailed, e))
				q.logger.Warn().Str("job_id", id).Str("kind", string(e.rec.Kind)).Err(execErr).Msg("job failed")
			}
		}
	}

	events = q.dispatchLocked(events)
	q.mu.Unlock()

	q.publish(events)
}

// Cancel reports whether cancellation of the job was accepted.
func (q *Queue) Cancel(id string) bool {
	return q.CancelJob(id) == nil
}

// CancelJob cancels a queued job, or signals a running one when the profile allows it.
// The state flips to cancelled immediately; a running executor releases its slot when it returns.
func (q *Queue) CancelJob(id string) error {
	q.mu.Lock()
	e, ok := q.records[id]
	if !ok {
		q.mu.Unlock()
		return ErrNotFound
	}

	var events []Event
	switch e.rec.State {
	case StateQueued:
		q.removePendingLocked(id)
		q.cancelledLocked(e)
		events = append(events, q.eventLocked(EventCancelled, e))
		events = q.dispatchLocked(events)
	case StateRunning:
		if !q.cfg.CancelRunning {
			q.mu.Unlock()
			return ErrNotCancellable
		}
		q.running--
		q.cancelledLocked(e)
		if e.cancel != nil {
			e.cancel()
		}
		events = append(events, q.eventLocked(EventCancelled, e))
	default:
		q.mu.Unlock()
		return ErrInvalidState
	}
	q.mu.Unlock()

	q.logger.Info().Str("job_id", id).Msg("job cancelled")
	q.publish(events)
	return nil
}

func (q *Queue) cancelledLocked(e *entry) {
	now := q.now()
	e.rec.State = StateCancelled
	e.rec.FinishedAt = &now
}

func (q *Queue) removePendingLocked(id string) {
	for i, pid := range q.pending {
		if pid == id {
			q.pending = append(q.pending[:i:i], q.pending[i+1:]...)
			return
		}
	}
}

// Status returns a snapshot of the job.
func (q *Queue) Status(id string) (Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return e.rec.snapshot(), nil
}

// List returns snapshots in submission order, optionally filtered by kind.
func (q *Queue) List(kinds ...Kind) []Record {
	q.mu.Lock()
	entries := make([]*entry, 0, len(q.records))
	for _, e := range q.records {
		if len(kinds) > 0 && !containsKind(kinds, e.rec.Kind) {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = e.rec.snapshot()
	}
	q.mu.Unlock()
	return out
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

// Stats counts the records currently held by the queue.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Stats{Slots: q.slots}
	for _, e := range q.records {
		switch e.rec.State {
		case StateQueued:
			s.Queued++
		case StateRunning:
			s.Running++
		case StateCompleted:
			s.Completed++
		case StateFailed:
			s.Failed++
		case StateCancelled:
			s.Cancelled++
		}
	}
	return s
}

// Prune drops terminal records that finished more than Retention before now.
func (q *Queue) Prune(now time.Time) int {
	if q.cfg.Retention <= 0 {
		return 0
	}
	cutoff := now.Add(-q.cfg.Retention)

	q.mu.Lock()
	removed := 0
	for id, e := range q.records {
		if !e.rec.State.Terminal() || e.rec.FinishedAt == nil || e.cancel != nil {
			continue
		}
		if e.rec.FinishedAt.Before(cutoff) {
			delete(q.records, id)
			removed++
		}
	}
	q.mu.Unlock()

	if removed > 0 {
		q.logger.Debug().Int("removed", removed).Msg("pruned finished jobs")
	}
	return removed
}

// Shutdown stops admission, cancels queued jobs and waits for running executors.
// When ctx expires first, running jobs are cancelled and Shutdown waits for them to return.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	var events []Event
	for _, id := range q.pending {
		if e, ok := q.records[id]; ok && e.rec.State == StateQueued {
			q.cancelledLocked(e)
			events = append(events, q.eventLocked(EventCancelled, e))
		}
	}
	q.pending = nil
	q.mu.Unlock()
	q.publish(events)

	q.logger.Info().Msg("queue shutting down")

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		q.logger.Warn().Msg("queue shutdown timed out, cancelling running jobs")
		q.mu.Lock()
		events = events[:0]
		for _, e := range q.records {
			if e.rec.State != StateRunning {
				continue
			}
			q.running--
			q.cancelledLocked(e)
			if e.cancel != nil {
				e.cancel()
			}
			events = append(events, q.eventLocked(EventCancelled, e))
		}
		q.mu.Unlock()
		q.publish(events)
		<-done
		return ctx.Err()
	}
}
