package database

import (
	"time"
)

// Run is one persisted pipeline execution.
type Run struct {
	ID               string
	CheckedAt        time.Time
	WindowHours      int
	Status           string
	Items            int
	Degraded         int
	MessagesRendered int
	MessagesSent     int
	StaleIdentifiers bool
	Error            string
	Summary          string // JSON encoded run summary
	CreatedAt        time.Time
}
