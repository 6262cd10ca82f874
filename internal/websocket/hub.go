package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/makeasinger/mediajobs/internal/model"
	"github.com/rs/zerolog/log"
)

// Client represents a WebSocket client
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte

	// version of the newest job frame queued on Send
	version uint64
}

// Hub fans queue events out to the WebSocket clients watching each job
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	broadcast chan *BroadcastMessage
	done      chan struct{}

	queues []*jobs.Queue

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	JobID   string
	Version uint64
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[string]map[*Client]bool),
		broadcast: make(chan *BroadcastMessage, 256),
		done:      make(chan struct{}),
	}
}

// Attach subscribes the hub to every event of q and returns the unsubscribe function
func (h *Hub) Attach(q *jobs.Queue) func() {
	h.mu.Lock()
	h.queues = append(h.queues, q)
	h.mu.Unlock()
	return q.Subscribe(h.Publish)
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			close(h.done)
			for _, clients := range h.clients {
				for client := range clients {
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
			return

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.JobID] {
				h.deliverLocked(client, msg.Version, msg.Message)
			}
			h.mu.Unlock()
		}
	}
}

// deliverLocked queues data on the client. Versioned frames older than the
// last one queued are dropped; version 0 marks frames that are not job state.
func (h *Hub) deliverLocked(client *Client, version uint64, data []byte) {
	if version != 0 {
		if version <= client.version {
			return
		}
		client.version = version
	}
	select {
	case client.Send <- data:
	default:
		// Slow consumer
		h.removeLocked(client)
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		close(client.Send)
		if len(clients) == 0 {
			delete(h.clients, client.JobID)
		}
	}
}

// Register adds a new client. Events published after it returns reach the client.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		close(client.Send)
		return
	default:
	}
	if h.clients[client.JobID] == nil {
		h.clients[client.JobID] = make(map[*Client]bool)
	}
	h.clients[client.JobID][client] = true
	log.Debug().Str("job_id", client.JobID).Msg("websocket client registered")
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client.JobID][client] {
		h.removeLocked(client)
		log.Debug().Str("job_id", client.JobID).Msg("websocket client unregistered")
	}
}

// sendTo queues data for a client that is still registered
func (h *Hub) sendTo(client *Client, version uint64, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client.JobID][client] {
		return
	}
	h.deliverLocked(client, version, data)
}

// sendSnapshot queues the current state of the client's job. It returns false
// with a NOT_FOUND frame when no attached queue knows the job.
func (h *Hub) sendSnapshot(client *Client) ([]byte, bool) {
	data, version, ok := h.initialMessage(client.JobID)
	if !ok {
		return data, false
	}
	h.sendTo(client, version, data)
	return nil, true
}

// Publish converts a queue event into a client message. It never blocks the queue.
func (h *Hub) Publish(ev jobs.Event) {
	data, err := json.Marshal(eventMessage(ev))
	if err != nil {
		log.Error().Err(err).Str("job_id", ev.Record.ID).Msg("failed to marshal job event")
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{JobID: ev.Record.ID, Version: ev.Record.Version, Message: data}:
	default:
		log.Warn().Str("job_id", ev.Record.ID).Str("event", string(ev.Type)).Msg("websocket broadcast buffer full, dropping event")
	}
}

func eventMessage(ev jobs.Event) interface{} {
	rec := ev.Record
	switch ev.Type {
	case jobs.EventCompleted:
		return model.WSCompleteMessage{
			Type:   model.WSMessageTypeComplete,
			JobID:  rec.ID,
			Result: rec.Result,
		}
	case jobs.EventFailed:
		return model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: rec.ID,
			Error: model.WSError{Code: "JOB_FAILED", Message: rec.Error},
		}
	case jobs.EventProgress:
		return stateMessage(model.WSMessageTypeProgress, rec)
	default:
		return stateMessage(model.WSMessageTypeState, rec)
	}
}

func stateMessage(msgType string, rec jobs.Record) model.WSProgressMessage {
	return model.WSProgressMessage{
		Type:     msgType,
		JobID:    rec.ID,
		Progress: rec.Progress,
		Status:   rec.State,
	}
}

// lookup finds the current record of jobID in the attached queues
func (h *Hub) lookup(jobID string) (jobs.Record, bool) {
	h.mu.RLock()
	queues := h.queues
	h.mu.RUnlock()
	for _, q := range queues {
		if rec, err := q.Status(jobID); err == nil {
			return rec, true
		}
	}
	return jobs.Record{}, false
}

// initialMessage is sent right after a client connects
func (h *Hub) initialMessage(jobID string) ([]byte, uint64, bool) {
	rec, ok := h.lookup(jobID)
	if !ok {
		data, _ := json.Marshal(model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: jobID,
			Error: model.WSError{Code: "NOT_FOUND", Message: "Job not found"},
		})
		return data, 0, false
	}

	var msg interface{}
	switch rec.State {
	case jobs.StateCompleted:
		msg = eventMessage(jobs.Event{Type: jobs.EventCompleted, Record: rec})
	case jobs.StateFailed:
		msg = eventMessage(jobs.Event{Type: jobs.EventFailed, Record: rec})
	default:
		msg = stateMessage(model.WSMessageTypeState, rec)
	}
	data, _ := json.Marshal(msg)
	return data, rec.Version, true
}

// HandleConnection streams events for jobID until the client goes away
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// The snapshot is taken after registration so a transition in between
	// arrives either inside it or as a later frame.
	if notFound, ok := h.sendSnapshot(client); !ok {
		c.WriteMessage(websocket.TextMessage, notFound)
		c.WriteMessage(websocket.CloseMessage, []byte{})
		return
	}

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("job_id", jobID).Msg("websocket error")
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			h.sendTo(client, 0, data)
		}
	}
}
