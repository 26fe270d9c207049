package schedule

import (
	"context"
	"strings"
	"testing"
	"time"

	"castbot/internal/storage"
	logx "castbot/pkg/logx"
)

type dispatchRecorder struct {
	calls []string
}

func (d *dispatchRecorder) DispatchNow(ctx context.Context, adminID int64, content string) error {
	d.calls = append(d.calls, content)
	return nil
}

func newTestService(t *testing.T, now time.Time) (*Service, storage.Store, *dispatchRecorder) {
	t.Helper()
	st := storage.NewMemory()
	disp := &dispatchRecorder{}
	svc := New(Config{Timezone: "UTC"}, st, disp, logx.Nop())
	svc.SetClock(func() time.Time { return now })
	return svc, st, disp
}

func handle(t *testing.T, svc *Service, admin int64, action Action, payload string) View {
	t.Helper()
	v, err := svc.Handle(context.Background(), admin, action, payload)
	if err != nil {
		t.Fatalf("Handle(%s, %q) error: %v", action, payload, err)
	}
	return v
}

func TestFullSchedulingFlow(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, time.August, 30, 10, 0, 0, 0, time.UTC)
	svc, st, _ := newTestService(t, now)
	const admin = int64(42)

	v := handle(t, svc, admin, ActionStart, `{"message_id":7,"chat_id":100}`)
	if len(v.Rows) == 0 {
		t.Fatal("start view has no keyboard")
	}
	if svc.Phase(admin) != PhaseAwaitingDate {
		t.Fatalf("phase = %v, want AwaitingDate", svc.Phase(admin))
	}

	// Quick-select "tomorrow" resolves to a concrete date payload.
	handle(t, svc, admin, ActionDate, "2025-08-31")
	if svc.Phase(admin) != PhaseAwaitingTime {
		t.Fatalf("phase = %v, want AwaitingTime", svc.Phase(admin))
	}

	handle(t, svc, admin, ActionTimeText, "14:30")
	if svc.Phase(admin) != PhaseAwaitingConfirmation {
		t.Fatalf("phase = %v, want AwaitingConfirmation", svc.Phase(admin))
	}

	v = handle(t, svc, admin, ActionConfirm, "")
	if svc.Phase(admin) != PhaseIdle {
		t.Fatalf("phase = %v, want Idle after confirm", svc.Phase(admin))
	}
	if !strings.Contains(v.Text, "scheduled") {
		t.Fatalf("unexpected confirm reply: %q", v.Text)
	}

	list, err := st.ListByAdmin(context.Background(), admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("store has %d records, want 1", len(list))
	}
	want := time.Date(2025, time.August, 31, 14, 30, 0, 0, time.UTC)
	if !list[0].ScheduledAt.Equal(want) {
		t.Fatalf("scheduled_at = %v, want %v", list[0].ScheduledAt, want)
	}
	if list[0].Sent {
		t.Fatal("new record must be unsent")
	}
}

func TestInvalidTimeKeepsPhase(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, time.August, 30, 10, 0, 0, 0, time.UTC)
	svc, st, _ := newTestService(t, now)
	const admin = int64(1)

	handle(t, svc, admin, ActionStart, "content")
	handle(t, svc, admin, ActionDate, "2025-08-31")

	for _, bad := range []string{"abc", "24:00", "9:5", "12:60"} {
		v := handle(t, svc, admin, ActionTimeText, bad)
		if svc.Phase(admin) != PhaseAwaitingTime {
			t.Fatalf("after %q: phase = %v, want AwaitingTime", bad, svc.Phase(admin))
		}
		if !strings.Contains(v.Text, "HH:MM") {
			t.Fatalf("after %q: reply %q does not prompt for format", bad, v.Text)
		}
	}

	list, err := st.ListByAdmin(context.Background(), admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("store must stay empty, has %d records", len(list))
	}
}

func TestPastDatetimeKeepsPhase(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, time.August, 30, 10, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(t, now)
	const admin = int64(1)

	handle(t, svc, admin, ActionStart, "content")
	handle(t, svc, admin, ActionDate, "2025-08-30")

	// 09:00 today is already past the 10:00 clock.
	v := handle(t, svc, admin, ActionTimeText, "09:00")
	if svc.Phase(admin) != PhaseAwaitingTime {
		t.Fatalf("phase = %v, want AwaitingTime", svc.Phase(admin))
	}
	if !strings.Contains(v.Text, "past") {
		t.Fatalf("reply %q does not mention past time", v.Text)
	}
}

func TestConfirmRejectsTimeSlippedIntoPast(t *testing.T) {
	t.Parallel()
	current := time.Date(2025, time.August, 30, 10, 0, 0, 0, time.UTC)
	st := storage.NewMemory()
	svc := New(Config{Timezone: "UTC"}, st, &dispatchRecorder{}, logx.Nop())
	svc.SetClock(func() time.Time { return current })
	const admin = int64(1)

	handle(t, svc, admin, ActionStart, "content")
	handle(t, svc, admin, ActionDate, "2025-08-30")
	handle(t, svc, admin, ActionTimeText, "10:30")
	if svc.Phase(admin) != PhaseAwaitingConfirmation {
		t.Fatalf("phase = %v, want AwaitingConfirmation", svc.Phase(admin))
	}

	// The operator hesitates until the chosen time has passed.
	current = current.Add(time.Hour)

	v := handle(t, svc, admin, ActionConfirm, "")
	if svc.Phase(admin) != PhaseAwaitingConfirmation {
		t.Fatalf("phase = %v, want AwaitingConfirmation after stale confirm", svc.Phase(admin))
	}
	if !strings.Contains(v.Text, "no longer in the future") {
		t.Fatalf("reply %q does not explain the stale time", v.Text)
	}
	list, err := st.ListByAdmin(context.Background(), admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("stale confirm persisted %d records", len(list))
	}

	// Cancel is still the way out.
	handle(t, svc, admin, ActionCancel, "")
	if svc.Phase(admin) != PhaseIdle {
		t.Fatalf("phase = %v, want Idle after cancel", svc.Phase(admin))
	}
}

func TestPastDateRejected(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, time.August, 30, 10, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(t, now)
	const admin = int64(1)

	handle(t, svc, admin, ActionStart, "content")
	handle(t, svc, admin, ActionDate, "2025-08-29")
	if svc.Phase(admin) != PhaseAwaitingDate {
		t.Fatalf("phase = %v, want AwaitingDate after past date", svc.Phase(admin))
	}
}

func TestCancelFromEveryPhase(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, time.August, 30, 10, 0, 0, 0, time.UTC)

	steps := [][]struct {
		action  Action
		payload string
	}{
		{{ActionStart, "m"}},
		{{ActionStart, "m"}, {ActionDate, "2025-08-31"}},
		{{ActionStart, "m"}, {ActionDate, "2025-08-31"}, {ActionTimeText, "14:30"}},
	}
	for _, prefix := range steps {
		svc, st, _ := newTestService(t, now)
		const admin = int64(9)
		for _, s := range prefix {
			handle(t, svc, admin, s.action, s.payload)
		}
		handle(t, svc, admin, ActionCancel, "")
		if svc.Phase(admin) != PhaseIdle {
			t.Fatalf("after cancel from step %d: phase = %v, want Idle", len(prefix), svc.Phase(admin))
		}
		list, err := st.ListByAdmin(context.Background(), admin)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 0 {
			t.Fatalf("cancel persisted %d records", len(list))
		}
	}
}

func TestCalendarNavigationKeepsPhase(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, time.December, 10, 10, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(t, now)
	const admin = int64(5)

	handle(t, svc, admin, ActionStart, "m")
	v := handle(t, svc, admin, ActionExpand, "")
	if svc.Phase(admin) != PhaseAwaitingDate {
		t.Fatalf("phase = %v, want AwaitingDate", svc.Phase(admin))
	}
	if !strings.Contains(headerLabel(v), "December 2025") {
		t.Fatalf("calendar header = %q, want December 2025", headerLabel(v))
	}

	// Next from December rolls into January of the following year.
	v = handle(t, svc, admin, ActionNav, "2026-01")
	if !strings.Contains(headerLabel(v), "January 2026") {
		t.Fatalf("calendar header = %q, want January 2026", headerLabel(v))
	}
	if svc.Phase(admin) != PhaseAwaitingDate {
		t.Fatalf("phase = %v, want AwaitingDate", svc.Phase(admin))
	}
}

func headerLabel(v View) string {
	if len(v.Rows) == 0 || len(v.Rows[0]) < 2 {
		return ""
	}
	return v.Rows[0][1].Label
}

func TestSendNowDispatchesWithoutPersisting(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, time.August, 30, 10, 0, 0, 0, time.UTC)
	svc, st, disp := newTestService(t, now)
	const admin = int64(3)

	handle(t, svc, admin, ActionStart, "urgent")
	handle(t, svc, admin, ActionSendNow, "")
	if svc.Phase(admin) != PhaseAwaitingConfirmation {
		t.Fatalf("phase = %v, want AwaitingConfirmation", svc.Phase(admin))
	}
	handle(t, svc, admin, ActionConfirm, "")

	if len(disp.calls) != 1 || disp.calls[0] != "urgent" {
		t.Fatalf("dispatcher calls = %v, want [urgent]", disp.calls)
	}
	list, err := st.ListByAdmin(context.Background(), admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("send-now persisted %d records", len(list))
	}
	if svc.Phase(admin) != PhaseIdle {
		t.Fatalf("phase = %v, want Idle", svc.Phase(admin))
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, time.August, 30, 10, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(t, now)

	handle(t, svc, 1, ActionStart, "a")
	handle(t, svc, 2, ActionStart, "b")
	handle(t, svc, 1, ActionDate, "2025-08-31")

	if svc.Phase(1) != PhaseAwaitingTime {
		t.Fatalf("admin 1 phase = %v, want AwaitingTime", svc.Phase(1))
	}
	if svc.Phase(2) != PhaseAwaitingDate {
		t.Fatalf("admin 2 phase = %v, want AwaitingDate", svc.Phase(2))
	}

	handle(t, svc, 2, ActionCancel, "")
	if svc.Phase(1) != PhaseAwaitingTime {
		t.Fatal("cancelling admin 2 must not touch admin 1")
	}
}
