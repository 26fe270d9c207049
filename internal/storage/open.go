package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "castbot/pkg/logx"
)

// Store is the persistence API shared by the scheduling dialog (writer of
// new records) and the delivery poller (reader/writer of due records).
//
// Implementations must keep MarkSent atomic with respect to concurrent
// ListDue calls: a record marked sent mid-cycle must never be returned as
// due again.
type Store interface {
	CreateBroadcast(ctx context.Context, adminID int64, content string, scheduledAt, now time.Time) (Broadcast, error)
	GetBroadcast(ctx context.Context, id int64) (Broadcast, error)
	ListByAdmin(ctx context.Context, adminID int64) ([]Broadcast, error)

	// ListDue returns unsent records with scheduled_at <= now, earliest
	// first. maxAttempts > 0 excludes records that already failed that many
	// delivery attempts; 0 means no cap.
	ListDue(ctx context.Context, now time.Time, maxAttempts int) ([]Broadcast, error)

	// MarkSent is idempotent: marking an already-sent record is a no-op.
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error

	// RecordAttempt increments the delivery attempt counter of an unsent record.
	RecordAttempt(ctx context.Context, id int64) error

	// DeleteBroadcast cancels a pending record. Deleting an already-sent
	// record fails with ErrAlreadySent.
	DeleteBroadcast(ctx context.Context, id int64) error

	UpsertSubscriber(ctx context.Context, chatID int64, username string, now time.Time) error
	ListSubscribers(ctx context.Context) ([]int64, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// validateSchedule enforces the strictly-in-the-future invariant shared by
// all drivers.
func validateSchedule(scheduledAt, now time.Time) error {
	if !scheduledAt.After(now) {
		return fmt.Errorf("%w: scheduled time must be in the future", ErrValidation)
	}
	return nil
}
