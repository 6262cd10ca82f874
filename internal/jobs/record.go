package jobs

import "time"

// Kind identifies which executor owns a job
type Kind string

const (
	KindRender Kind = "render"
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
	KindAudio  Kind = "audio"
	KindUpload Kind = "upload"
)

// State is the lifecycle state of a job
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Record describes one unit of work and its current lifecycle state.
// Values returned by a Queue are snapshots; mutating them has no effect on the queue.
// Version grows by one with every event emitted for the record.
type Record struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	State       State      `json:"state"`
	Progress    int        `json:"progress"`
	SubmittedAt time.Time  `json:"submittedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
	Result      any        `json:"result,omitempty"`
	Params      any        `json:"params"`
	Version     uint64     `json:"version"`
}

func (r *Record) snapshot() Record {
	c := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return c
}

// Stats counts records per state
type Stats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	// Slots is the number of executors still occupying a concurrency slot,
	// including cancelled ones that have not returned yet.
	Slots int `json:"slots"`
}
