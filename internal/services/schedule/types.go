package schedule

import (
	"context"
	"sync"
	"time"

	"castbot/internal/storage"
	logx "castbot/pkg/logx"
)

// Phase is the per-admin dialog state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingDate
	PhaseAwaitingTime
	PhaseAwaitingConfirmation
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingDate:
		return "awaiting_date"
	case PhaseAwaitingTime:
		return "awaiting_time"
	case PhaseAwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return "unknown"
	}
}

// Action is a logical operator input, already stripped of transport detail.
type Action string

const (
	ActionStart    Action = "start_schedule"
	ActionNav      Action = "calendar_nav"  // payload: target "YYYY-MM"
	ActionExpand   Action = "calendar_expand"
	ActionDate     Action = "date_selected" // payload: "YYYY-MM-DD"
	ActionSendNow  Action = "send_now"
	ActionTimeText Action = "time_text" // payload: "HH:MM"
	ActionConfirm  Action = "confirm"
	ActionCancel   Action = "cancel"
)

// session is the draft under composition for one admin. It exists only for
// the duration of an active dialog and is discarded on confirm or cancel.
type session struct {
	phase Phase

	content   string
	date      time.Time // midnight in the service location; zero if unset
	hour      int
	minute    int
	immediate bool // "send now" draft, dispatched instead of persisted

	// calendar view position
	calYear  int
	calMonth time.Month
}

// Button is a logical inline button; the transport layer renders it into
// platform markup.
type Button struct {
	Label   string
	Action  Action
	Payload string
}

// View is what the operator should see after a step: reply text plus an
// optional button grid.
type View struct {
	Text string
	Rows [][]Button
}

// Dispatcher sends a broadcast immediately, bypassing the store. Used by
// the "send now" path; the delivery fan-out implements it.
type Dispatcher interface {
	DispatchNow(ctx context.Context, adminID int64, content string) error
}

type Config struct {
	// Timezone is the admins' effective IANA zone for date+time input.
	// Empty means the host local zone.
	Timezone string
}

// Service drives the scheduling dialogs. One session per admin; sessions
// never interact, so a single mutex around the map is enough.
type Service struct {
	mu       sync.Mutex
	sessions map[int64]*session

	store      storage.Store
	dispatcher Dispatcher
	log        logx.Logger
	loc        *time.Location

	// now is the injected clock (tests replace it).
	now func() time.Time
}
