package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"castbot/internal/calendar"
	"castbot/internal/storage"
	logx "castbot/pkg/logx"
)

func New(cfg Config, store storage.Store, dispatcher Dispatcher, log logx.Logger) *Service {
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			log.Warn("invalid timezone; using host local", logx.String("tz", tz), logx.Err(err))
		}
	}
	return &Service{
		sessions:   map[int64]*session{},
		store:      store,
		dispatcher: dispatcher,
		log:        log,
		loc:        loc,
		now:        time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Location is the zone date+time input is interpreted in. Anything that
// echoes a scheduled time back to the operator should format in it.
func (s *Service) Location() *time.Location { return s.loc }

// Phase reports the current dialog phase for an admin.
func (s *Service) Phase(adminID int64) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[adminID]; ok {
		return sess.phase
	}
	return PhaseIdle
}

// Active reports whether the admin has a dialog in progress, i.e. whether
// plain text messages should be routed here as time input.
func (s *Service) Active(adminID int64) bool { return s.Phase(adminID) != PhaseIdle }

// Handle applies one operator action to the admin's session and returns the
// view to show. Malformed or invalid input never advances the phase; the
// returned view carries the correction prompt. Only store/transport failures
// surface as a non-nil error.
func (s *Service) Handle(ctx context.Context, adminID int64, action Action, payload string) (View, error) {
	s.mu.Lock()
	sess, ok := s.sessions[adminID]
	if !ok {
		sess = &session{phase: PhaseIdle}
		s.sessions[adminID] = sess
	}
	s.mu.Unlock()

	// Cancel works from any phase and always discards the draft.
	if action == ActionCancel {
		s.reset(adminID)
		return View{Text: "Scheduling cancelled. Nothing was saved."}, nil
	}

	switch sess.phase {
	case PhaseIdle:
		if action == ActionStart {
			return s.start(adminID, sess, payload)
		}
		return View{Text: "No scheduling dialog in progress. Send the broadcast message first."}, nil

	case PhaseAwaitingDate:
		switch action {
		case ActionNav:
			return s.navigate(sess, payload)
		case ActionExpand:
			return s.expand(sess)
		case ActionDate:
			return s.selectDate(sess, payload)
		case ActionSendNow:
			sess.immediate = true
			sess.phase = PhaseAwaitingConfirmation
			return confirmView(sess, time.Time{}), nil
		default:
			return View{Text: "Pick a date first, or cancel."}, nil
		}

	case PhaseAwaitingTime:
		if action == ActionTimeText {
			return s.enterTime(sess, payload)
		}
		return View{Text: "Send the delivery time as HH:MM (24-hour), or cancel."}, nil

	case PhaseAwaitingConfirmation:
		if action == ActionConfirm {
			return s.confirm(ctx, adminID, sess)
		}
		return View{Text: "Confirm or cancel the scheduled broadcast."}, nil
	}

	return View{Text: "Unexpected state; dialog reset."}, nil
}

func (s *Service) start(adminID int64, sess *session, content string) (View, error) {
	if strings.TrimSpace(content) == "" {
		return View{Text: "The broadcast message is empty. Send the message to broadcast first."}, nil
	}
	now := s.now().In(s.loc)
	sess.content = content
	sess.date = time.Time{}
	sess.immediate = false
	sess.calYear, sess.calMonth = now.Year(), now.Month()
	sess.phase = PhaseAwaitingDate

	s.log.Debug("scheduling dialog started", logx.Int64("admin", adminID))
	return quickSelectView(now), nil
}

func (s *Service) navigate(sess *session, payload string) (View, error) {
	// Payload carries the precomputed target month ("YYYY-MM"), so prev/next
	// resolution happened when the buttons were rendered.
	t, err := time.ParseInLocation("2006-01", payload, s.loc)
	if err != nil {
		return View{Text: "Bad calendar navigation; try again."}, nil
	}
	sess.calYear, sess.calMonth = t.Year(), t.Month()
	return s.calendarView(sess)
}

func (s *Service) expand(sess *session) (View, error) {
	now := s.now().In(s.loc)
	sess.calYear, sess.calMonth = now.Year(), now.Month()
	return s.calendarView(sess)
}

func (s *Service) calendarView(sess *session) (View, error) {
	now := s.now().In(s.loc)
	grid, err := calendar.Render(sess.calYear, sess.calMonth, now)
	if err != nil {
		return View{}, fmt.Errorf("render calendar: %w", err)
	}
	return monthView(grid), nil
}

func (s *Service) selectDate(sess *session, payload string) (View, error) {
	d, err := calendar.ParseDate(payload, s.loc)
	if err != nil {
		return View{Text: "Bad date; pick a day from the calendar."}, nil
	}
	now := s.now().In(s.loc)
	if d.Before(calendar.QuickSelect(now, 0)) {
		return View{Text: "That day has already passed. Pick today or later."}, nil
	}
	sess.date = d
	sess.phase = PhaseAwaitingTime
	return View{Text: fmt.Sprintf("Date set to %s. Now send the delivery time as HH:MM (24-hour).",
		d.Format("02.01.2006"))}, nil
}

func (s *Service) enterTime(sess *session, text string) (View, error) {
	hour, minute, err := calendar.ParseTime(strings.TrimSpace(text))
	if err != nil {
		return View{Text: "Time format must be HH:MM (24-hour), e.g. 14:30. Try again."}, nil
	}
	at := calendar.At(sess.date, hour, minute, s.loc)
	if !at.After(s.now()) {
		return View{Text: "That time is already in the past. Send a later time."}, nil
	}
	sess.hour, sess.minute = hour, minute
	sess.phase = PhaseAwaitingConfirmation
	return confirmView(sess, at), nil
}

func (s *Service) confirm(ctx context.Context, adminID int64, sess *session) (View, error) {
	if sess.immediate {
		if s.dispatcher == nil {
			return View{}, errors.New("no dispatcher configured")
		}
		content := sess.content
		s.reset(adminID)
		if err := s.dispatcher.DispatchNow(ctx, adminID, content); err != nil {
			return View{}, fmt.Errorf("dispatch now: %w", err)
		}
		return View{Text: "Broadcast started. You will be notified when it finishes."}, nil
	}

	at := calendar.At(sess.date, sess.hour, sess.minute, s.loc)
	b, err := s.store.CreateBroadcast(ctx, adminID, sess.content, at, s.now())
	if err != nil {
		if errors.Is(err, storage.ErrValidation) {
			// Stay in confirmation; the target slipped into the past while
			// the operator hesitated.
			return View{Text: "The chosen time is no longer in the future. Cancel and pick a new one."}, nil
		}
		return View{}, fmt.Errorf("create broadcast: %w", err)
	}
	s.reset(adminID)

	s.log.Info("broadcast scheduled",
		logx.Int64("id", b.ID),
		logx.Int64("admin", adminID),
		logx.Time("at", b.ScheduledAt),
	)
	return View{Text: fmt.Sprintf("Broadcast #%d scheduled for %s.",
		b.ID, at.Format("02.01.2006 15:04"))}, nil
}

func (s *Service) reset(adminID int64) {
	s.mu.Lock()
	delete(s.sessions, adminID)
	s.mu.Unlock()
}
