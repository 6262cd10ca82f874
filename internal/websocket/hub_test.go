package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/makeasinger/mediajobs/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoParams struct {
	Value string `validate:"required"`
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return h
}

func newClient(jobID string) *Client {
	return &Client{JobID: jobID, Send: make(chan []byte, 16)}
}

func receive(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "client channel closed")
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestHub_RoutesEventsByJob(t *testing.T) {
	h := startHub(t)
	a, b := newClient("job-a"), newClient("job-b")
	h.Register(a)
	h.Register(b)

	h.Publish(jobs.Event{Type: jobs.EventProgress, Record: jobs.Record{ID: "job-a", State: jobs.StateRunning, Progress: 40}})

	msg := receive(t, a)
	assert.Equal(t, model.WSMessageTypeProgress, msg["type"])
	assert.Equal(t, "job-a", msg["jobId"])
	assert.Equal(t, float64(40), msg["progress"])
	assert.Equal(t, "running", msg["status"])

	select {
	case <-b.Send:
		t.Fatal("client of another job received the event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEventMessage_Types(t *testing.T) {
	done := eventMessage(jobs.Event{Type: jobs.EventCompleted, Record: jobs.Record{ID: "j", Result: "ok"}})
	assert.Equal(t, model.WSCompleteMessage{Type: model.WSMessageTypeComplete, JobID: "j", Result: "ok"}, done)

	failed := eventMessage(jobs.Event{Type: jobs.EventFailed, Record: jobs.Record{ID: "j", Error: "boom"}})
	assert.Equal(t, "boom", failed.(model.WSErrorMessage).Error.Message)

	cancelled := eventMessage(jobs.Event{Type: jobs.EventCancelled, Record: jobs.Record{ID: "j", State: jobs.StateCancelled}})
	assert.Equal(t, model.WSMessageTypeState, cancelled.(model.WSProgressMessage).Type)
}

func TestHub_AttachForwardsQueueEvents(t *testing.T) {
	h := startHub(t)

	release := make(chan struct{})
	exec := jobs.Typed[echoParams, string](func(ctx context.Context, p echoParams, progress jobs.ProgressFunc) (string, error) {
		<-release
		progress(50)
		return p.Value, nil
	})
	q := jobs.New(jobs.Config{Name: "test", Concurrency: 1}, jobs.WithExecutor(jobs.KindRender, exec))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		q.Shutdown(ctx)
	})
	unsubscribe := h.Attach(q)
	defer unsubscribe()

	rec, err := q.Submit(jobs.KindRender, echoParams{Value: "done"})
	require.NoError(t, err)

	first, _, ok := h.initialMessage(rec.ID)
	require.True(t, ok)
	assert.Contains(t, string(first), `"status":"running"`)

	client := newClient(rec.ID)
	h.Register(client)
	close(release)

	var types []string
	for {
		msg := receive(t, client)
		if msg["type"] == model.WSMessageTypeState {
			// queued/started may land after registration
			continue
		}
		types = append(types, msg["type"].(string))
		if msg["type"] == model.WSMessageTypeComplete {
			assert.Equal(t, "done", msg["result"])
			break
		}
	}
	assert.Equal(t, []string{model.WSMessageTypeProgress, model.WSMessageTypeComplete}, types)
}

func TestHub_InitialMessageUnknownJob(t *testing.T) {
	h := NewHub()
	data, _, ok := h.initialMessage("missing")
	assert.False(t, ok)
	assert.Contains(t, string(data), "NOT_FOUND")

	c := newClient("missing")
	h.Register(c)
	data, ok = h.sendSnapshot(c)
	assert.False(t, ok)
	assert.Contains(t, string(data), "NOT_FOUND")
}

func TestHub_SnapshotAfterRegisterSeesJobFinishedInBetween(t *testing.T) {
	h := startHub(t)

	release := make(chan struct{})
	exec := jobs.Typed[echoParams, string](func(ctx context.Context, p echoParams, progress jobs.ProgressFunc) (string, error) {
		<-release
		return p.Value, nil
	})
	q := jobs.New(jobs.Config{Name: "test", Concurrency: 1}, jobs.WithExecutor(jobs.KindRender, exec))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		q.Shutdown(ctx)
	})
	unsubscribe := h.Attach(q)
	defer unsubscribe()

	rec, err := q.Submit(jobs.KindRender, echoParams{Value: "late"})
	require.NoError(t, err)

	client := newClient(rec.ID)
	h.Register(client)

	// Job finishes between registration and the snapshot
	close(release)
	require.Eventually(t, func() bool {
		got, err := q.Status(rec.ID)
		return err == nil && got.State == jobs.StateCompleted
	}, time.Second, time.Millisecond)

	_, ok := h.sendSnapshot(client)
	require.True(t, ok)

	for {
		msg := receive(t, client)
		if msg["type"] == model.WSMessageTypeComplete {
			assert.Equal(t, "late", msg["result"])
			break
		}
		assert.Equal(t, model.WSMessageTypeState, msg["type"])
	}

	// The completed event and the snapshot carry the same version; only one is sent
	select {
	case data := <-client.Send:
		t.Fatalf("unexpected frame after completion: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DropsFramesOlderThanLastSent(t *testing.T) {
	h := startHub(t)
	c := newClient("job")
	h.Register(c)

	h.Publish(jobs.Event{Type: jobs.EventCancelled, Record: jobs.Record{ID: "job", State: jobs.StateCancelled, Progress: 40, Version: 5}})
	msg := receive(t, c)
	assert.Equal(t, "cancelled", msg["status"])

	// progress taken before the cancel, published after it
	h.Publish(jobs.Event{Type: jobs.EventProgress, Record: jobs.Record{ID: "job", State: jobs.StateRunning, Progress: 40, Version: 4}})
	h.Publish(jobs.Event{Type: jobs.EventCancelled, Record: jobs.Record{ID: "job", State: jobs.StateCancelled, Progress: 40, Version: 5}})

	select {
	case data := <-c.Send:
		t.Fatalf("stale frame delivered: %s", data)
	case <-time.After(20 * time.Millisecond):
	}

	// Unversioned frames such as pong are never filtered
	h.sendTo(c, 0, []byte(`{"type":"pong"}`))
	assert.Equal(t, model.WSMessageTypePong, receive(t, c)["type"])
}

func TestHub_StopClosesClients(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	c := newClient("job")
	h.Register(c)
	cancel()
	<-stopped

	_, ok := <-c.Send
	assert.False(t, ok)

	// Unregister after stop must not block
	h.Unregister(c)
}
