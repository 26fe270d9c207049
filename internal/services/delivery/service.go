package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"castbot/internal/storage"
	kit "castbot/internal/transport"
	logx "castbot/pkg/logx"
)

func New(cfg Config, store storage.Store, sender Sender, adapter kit.Adapter, log logx.Logger) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	return &Service{
		cfg:     cfg,
		store:   store,
		sender:  sender,
		adapter: adapter,
		log:     log,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Start launches the poll loop. SkipIfStillRunning guarantees a new cycle
// never starts while the previous one is still sending.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled {
		s.log.Info("delivery disabled")
		return nil
	}
	if s.c != nil {
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	spec := fmt.Sprintf("@every %s", s.cfg.PollInterval)
	if _, err := c.AddFunc(spec, func() {
		s.RunDue(ctx, s.now())
	}); err != nil {
		return fmt.Errorf("delivery poll schedule: %w", err)
	}
	c.Start()
	s.c = c

	s.log.Info("delivery started", logx.Duration("interval", s.cfg.PollInterval))
	return nil
}

// Stop halts the poll loop, waiting for an in-flight cycle to finish or
// ctx to expire, whichever comes first.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		s.log.Info("delivery stopped")
	case <-ctx.Done():
		s.log.Warn("delivery stop timed out; cycle continues in background")
	}
}

// RunDue executes one poll cycle at the given instant. It is the loop body
// the timer fires, exported so a cycle can be driven directly in tests.
// A single record's failure never aborts the cycle.
func (s *Service) RunDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	maxAttempts := s.cfg.MaxAttempts
	s.mu.Unlock()

	due, err := s.store.ListDue(ctx, now, maxAttempts)
	if err != nil {
		s.log.Error("due query failed", logx.Err(err))
		return
	}
	if len(due) == 0 {
		return
	}
	s.log.Info("processing due broadcasts", logx.Int("count", len(due)))

	for _, b := range due {
		rep, err := s.sender.Send(ctx, b.Content)
		if err != nil {
			// Leave the record unsent; it is retried next cycle until the
			// attempt cap (if any) is reached.
			if rerr := s.store.RecordAttempt(ctx, b.ID); rerr != nil {
				s.log.Error("attempt count update failed", logx.Int64("id", b.ID), logx.Err(rerr))
			}
			attempts := b.Attempts + 1
			if maxAttempts > 0 && attempts >= maxAttempts {
				s.log.Error("broadcast giving up after max attempts; delete or reschedule it",
					logx.Int64("id", b.ID), logx.Int("attempts", attempts), logx.Err(err))
			} else {
				s.log.Warn("broadcast delivery failed; will retry",
					logx.Int64("id", b.ID), logx.Int("attempts", attempts), logx.Err(err))
			}
			continue
		}

		if err := s.store.MarkSent(ctx, b.ID, s.now()); err != nil {
			s.log.Error("mark sent failed", logx.Int64("id", b.ID), logx.Err(err))
			continue
		}
		s.log.Info("scheduled broadcast delivered",
			logx.Int64("id", b.ID),
			logx.Int("total", rep.Total),
			logx.Int("failed", rep.Failed),
		)
		s.notifyAdmin(ctx, b.ID, b.AdminID, rep.Sent, rep.Failed)
	}
}

func (s *Service) notifyAdmin(ctx context.Context, id, adminID int64, sent, failed int) {
	if s.adapter == nil {
		return
	}
	notice := fmt.Sprintf("✅ Scheduled broadcast #%d delivered!\n\n• Delivered: %d\n• Failed: %d", id, sent, failed)
	if _, err := s.adapter.SendText(ctx, kit.ChatTarget{ChatID: adminID}, notice, nil); err != nil {
		s.log.Warn("admin notice failed", logx.Int64("admin", adminID), logx.Err(err))
	}
}
