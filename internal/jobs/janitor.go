package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultPruneSchedule runs the janitor once a minute.
const DefaultPruneSchedule = "@every 1m"

// Janitor periodically prunes finished records from a set of queues.
type Janitor struct {
	cron   *cron.Cron
	queues []*Queue
	now    func() time.Time
}

// NewJanitor schedules Prune on every queue using a cron spec such as "@every 1m".
func NewJanitor(schedule string, queues ...*Queue) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	j := &Janitor{
		cron:   cron.New(),
		queues: queues,
		now:    time.Now,
	}
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Sweep prunes every queue once.
func (j *Janitor) Sweep() {
	j.sweep()
}

func (j *Janitor) sweep() int {
	now := j.now()
	total := 0
	for _, q := range j.queues {
		total += q.Prune(now)
	}
	if total > 0 {
		log.Info().Int("removed", total).Msg("janitor pruned finished jobs")
	}
	return total
}

// Start runs the schedule in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running sweep to return.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
