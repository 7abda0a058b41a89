package model

import "time"

// Event kinds flowing through the relay and out to stream consumers.
// The names match the wire events of the admin sync API.
const (
	EventStarted   = "sync_started"
	EventLog       = "log_message"
	EventProgress  = "progress_update"
	EventHeartbeat = "heartbeat"
	EventCompleted = "sync_completed"
	EventError     = "error"
)

// Event is one tagged record delivered to a stream consumer.
type Event struct {
	Kind      string      `json:"event"`
	Payload   interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// LogEntry is the payload of a log_message event.
type LogEntry struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Progress is the payload of a progress_update event.
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message"`
}

// NewProgress builds a progress tick with the percentage precomputed.
func NewProgress(current, total int, message string) Progress {
	p := Progress{Current: current, Total: total, Message: message}
	if total > 0 {
		p.Percentage = float64(current) / float64(total) * 100
	}
	return p
}
