package jobs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation     = errors.New("invalid job parameters")
	ErrQueueFull      = errors.New("queue is full")
	ErrNotFound       = errors.New("job not found")
	ErrInvalidState   = errors.New("job already finished")
	ErrNotCancellable = errors.New("job can no longer be cancelled")
	ErrQueueClosed    = errors.New("queue is closed")
)

// ValidationError is returned by Submit when the parameters do not satisfy
// the schema of the requested kind. Fields maps a field name to the failed rule.
type ValidationError struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ExecutionError wraps an executor failure. Its message is what ends up on Record.Error.
type ExecutionError struct {
	JobID string
	Err   error
}

func (e *ExecutionError) Error() string { return e.Err.Error() }

func (e *ExecutionError) Unwrap() error { return e.Err }
