package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a broadcast id does not exist.
	ErrNotFound = errors.New("broadcast not found")
	// ErrAlreadySent guards mutations that are only valid on unsent records.
	ErrAlreadySent = errors.New("broadcast already sent")
	// ErrValidation marks a create request that violates an invariant
	// (e.g. a scheduled time that is not strictly in the future).
	ErrValidation = errors.New("validation error")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "memory": in-process store, lost on restart (tests, dry runs)
//
// If Driver is empty, "sqlite" is assumed.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Broadcast is a single pending or completed broadcast job.
//
// Content is an opaque serialized message payload; the store never
// interprets it. SentAt is the zero time until delivery succeeds.
type Broadcast struct {
	ID          int64
	AdminID     int64
	Content     string
	ScheduledAt time.Time
	CreatedAt   time.Time
	Sent        bool
	SentAt      time.Time
	Attempts    int
}

// Subscriber is a chat the bot may broadcast to.
type Subscriber struct {
	ChatID   int64
	Username string
	JoinedAt time.Time
}
