package model

import "github.com/makeasinger/mediajobs/internal/jobs"

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeState    = "state"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage represents a progress or state update
type WSProgressMessage struct {
	Type     string     `json:"type"`
	JobID    string     `json:"jobId"`
	Progress int        `json:"progress"`
	Status   jobs.State `json:"status"`
}

// WSCompleteMessage represents job completion
type WSCompleteMessage struct {
	Type   string `json:"type"`
	JobID  string `json:"jobId"`
	Result any    `json:"result"`
}

// WSErrorMessage represents a failed job
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
