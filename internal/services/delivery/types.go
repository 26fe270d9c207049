package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"castbot/internal/services/broadcast"
	"castbot/internal/storage"
	kit "castbot/internal/transport"
	logx "castbot/pkg/logx"
)

type Config struct {
	Enabled      bool
	PollInterval time.Duration // default 1m
	// MaxAttempts caps retries for a persistently failing record; 0 means
	// retry on every cycle forever.
	MaxAttempts int
}

// Sender is the fan-out collaborator. The poller passes stored content
// through untouched; interpretation is the sender's job.
type Sender interface {
	Send(ctx context.Context, content string) (broadcast.Report, error)
}

// Service polls the store for due broadcasts and dispatches them. It runs
// as a single periodic background task; cycles never overlap, and within a
// cycle records are sent sequentially in ascending scheduled order.
type Service struct {
	mu  sync.Mutex
	cfg Config

	store   storage.Store
	sender  Sender
	adapter kit.Adapter
	log     logx.Logger

	c *cron.Cron

	// now is the injected clock (tests replace it).
	now func() time.Time
}
