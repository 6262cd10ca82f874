package jobs

import (
	"github.com/rs/zerolog/log"
)

// EventType names a queue notification
type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Event carries a snapshot of the record taken at the moment of the transition.
type Event struct {
	Type   EventType `json:"type"`
	Queue  string    `json:"queue"`
	Record Record    `json:"record"`
}

// Listener receives queue events. It is called outside the queue lock and must not block for long.
type Listener func(Event)

type subscriber struct {
	id       uint64
	listener Listener
}

// Subscribe registers l for every event emitted by the queue and returns a function removing it.
func (q *Queue) Subscribe(l Listener) (unsubscribe func()) {
	q.subMu.Lock()
	q.nextSub++
	id := q.nextSub
	q.subs = append(q.subs, subscriber{id: id, listener: l})
	q.subMu.Unlock()

	return func() {
		q.subMu.Lock()
		defer q.subMu.Unlock()
		for i, s := range q.subs {
			if s.id == id {
				q.subs = append(q.subs[:i:i], q.subs[i+1:]...)
				break
			}
		}
	}
}

// eventLocked bumps the record version so consumers can order events of one job.
func (q *Queue) eventLocked(t EventType, e *entry) Event {
	e.rec.Version++
	return Event{Type: t, Queue: q.cfg.Name, Record: e.rec.snapshot()}
}

func (q *Queue) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	q.subMu.RLock()
	subs := make([]subscriber, len(q.subs))
	copy(subs, q.subs)
	q.subMu.RUnlock()

	for _, ev := range events {
		for _, s := range subs {
			deliver(s.listener, ev)
		}
	}
}

func deliver(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("queue", ev.Queue).
				Str("job_id", ev.Record.ID).
				Msg("job event listener panicked")
		}
	}()
	l(ev)
}
