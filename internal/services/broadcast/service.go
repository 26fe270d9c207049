package broadcast

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"castbot/internal/storage"
	kit "castbot/internal/transport"
	logx "castbot/pkg/logx"
)

func New(cfg Config, adapter kit.Adapter, store storage.Store, log logx.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	return &Service{
		cfg:     cfg,
		adapter: adapter,
		store:   store,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	rps := s.cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
}

// Send fans raw stored content out to all current subscribers. A non-nil
// error means the run could not even start (undecodable content, target
// listing failed); per-subscriber failures are counted in the Report.
func (s *Service) Send(ctx context.Context, raw string) (Report, error) {
	content, err := DecodeContent(raw)
	if err != nil {
		return Report{}, err
	}
	targets, err := s.store.ListSubscribers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list subscribers: %w", err)
	}

	start := time.Now()
	rep := Report{Total: len(targets)}
	for _, chatID := range targets {
		if err := s.sendOne(ctx, kit.ChatTarget{ChatID: chatID}, content); err != nil {
			rep.Failed++
			continue
		}
		rep.Sent++
	}

	fields := []logx.Field{
		logx.Int("total", rep.Total),
		logx.Int("failed", rep.Failed),
		logx.Duration("dur", time.Since(start)),
	}
	if rep.Failed > 0 {
		s.log.Warn("broadcast finished with failures", fields...)
	} else {
		s.log.Info("broadcast finished", fields...)
	}
	return rep, nil
}

// DispatchNow runs a broadcast immediately and reports the outcome back to
// the admin who triggered it.
func (s *Service) DispatchNow(ctx context.Context, adminID int64, raw string) error {
	rep, err := s.Send(ctx, raw)
	if err != nil {
		return err
	}
	notice := fmt.Sprintf("✅ Broadcast finished!\n\n• Delivered: %d\n• Failed: %d", rep.Sent, rep.Failed)
	if _, err := s.adapter.SendText(ctx, kit.ChatTarget{ChatID: adminID}, notice, nil); err != nil {
		s.log.Warn("admin notice failed", logx.Int64("admin", adminID), logx.Err(err))
	}
	return nil
}

func (s *Service) sendOne(ctx context.Context, to kit.ChatTarget, content Content) error {
	// Snapshot mutable dependencies to avoid races with Apply().
	s.mu.Lock()
	lim := s.limiter
	retry := s.cfg.RetryMax
	s.mu.Unlock()

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}
	var last error
	for i := 0; i <= retry; i++ {
		err := s.deliver(ctx, to, content)
		if err == nil {
			return nil
		}
		last = err
		if i == retry {
			break
		}
		delay := time.Duration(200+100*i) * time.Millisecond
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return ctx.Err()
		case <-tmr.C:
		}
	}
	s.log.Warn("broadcast send failed", logx.Int64("chat_id", to.ChatID), logx.Err(last))
	return last
}

func (s *Service) deliver(ctx context.Context, to kit.ChatTarget, content Content) error {
	if content.MessageID != 0 {
		return s.adapter.CopyMessage(ctx, to, kit.MessageRef{
			ChatID:    content.ChatID,
			MessageID: content.MessageID,
		})
	}
	_, err := s.adapter.SendText(ctx, to, content.Text, nil)
	return err
}
