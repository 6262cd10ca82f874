package worker

import (
	"context"
	"time"

	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/rs/zerolog"
)

// step is one simulated stage of a job. weight scales the worker's step delay.
type step struct {
	progress int
	name     string
	weight   float64
}

// runSteps walks through steps, reporting progress after each one. It returns
// ctx.Err() as soon as the context is done.
func runSteps(ctx context.Context, logger zerolog.Logger, delay time.Duration, steps []step, progress jobs.ProgressFunc) error {
	for _, s := range steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logger.Debug().Str("step", s.name).Int("progress", s.progress).Msg("job step")

		if d := time.Duration(float64(delay) * s.weight); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		progress(s.progress)
	}
	return nil
}
