package broadcast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"castbot/internal/storage"
	kit "castbot/internal/transport"
	logx "castbot/pkg/logx"
)

type fakeAdapter struct {
	texts  map[int64][]string // chat -> texts sent
	copies map[int64][]kit.MessageRef
	fail   map[int64]error // chat -> forced send error

	attempts map[int64]int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		texts:    map[int64][]string{},
		copies:   map[int64][]kit.MessageRef{},
		fail:     map[int64]error{},
		attempts: map[int64]int{},
	}
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.attempts[to.ChatID]++
	if err := f.fail[to.ChatID]; err != nil {
		return kit.MessageRef{}, err
	}
	f.texts[to.ChatID] = append(f.texts[to.ChatID], text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.texts[to.ChatID])}, nil
}

func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}

func (f *fakeAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return nil
}

func (f *fakeAdapter) CopyMessage(ctx context.Context, to kit.ChatTarget, from kit.MessageRef) error {
	f.attempts[to.ChatID]++
	if err := f.fail[to.ChatID]; err != nil {
		return err
	}
	f.copies[to.ChatID] = append(f.copies[to.ChatID], from)
	return nil
}

func subscribedStore(t *testing.T, chatIDs ...int64) storage.Store {
	t.Helper()
	st := storage.NewMemory()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range chatIDs {
		if err := st.UpsertSubscriber(context.Background(), id, "", now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

func TestSendFansOutText(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	svc := New(Config{}, ad, subscribedStore(t, 10, 20, 30), logx.Nop())

	raw, err := Content{Text: "hello everyone"}.Encode()
	if err != nil {
		t.Fatal(err)
	}
	rep, err := svc.Send(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Total != 3 || rep.Sent != 3 || rep.Failed != 0 {
		t.Fatalf("report = %+v, want 3/3/0", rep)
	}
	for _, id := range []int64{10, 20, 30} {
		if got := ad.texts[id]; len(got) != 1 || got[0] != "hello everyone" {
			t.Fatalf("chat %d received %v", id, got)
		}
	}
}

func TestSendCopiesMessageReference(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	svc := New(Config{}, ad, subscribedStore(t, 10, 20), logx.Nop())

	raw, err := Content{MessageID: 77, ChatID: 5, Text: "caption"}.Encode()
	if err != nil {
		t.Fatal(err)
	}
	rep, err := svc.Send(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Sent != 2 {
		t.Fatalf("report = %+v, want 2 sent", rep)
	}
	want := kit.MessageRef{ChatID: 5, MessageID: 77}
	for _, id := range []int64{10, 20} {
		if got := ad.copies[id]; len(got) != 1 || got[0] != want {
			t.Fatalf("chat %d copies = %v, want %v", id, got, want)
		}
		if len(ad.texts[id]) != 0 {
			t.Fatalf("chat %d got a text instead of a copy", id)
		}
	}
}

func TestSendCountsFailuresAndContinues(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	ad.fail[20] = errors.New("blocked by user")
	svc := New(Config{RetryMax: 1}, ad, subscribedStore(t, 10, 20, 30), logx.Nop())

	raw, err := Content{Text: "hi"}.Encode()
	if err != nil {
		t.Fatal(err)
	}
	rep, err := svc.Send(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Total != 3 || rep.Sent != 2 || rep.Failed != 1 {
		t.Fatalf("report = %+v, want 3 total, 2 sent, 1 failed", rep)
	}
	// The failing target is retried, the others are not.
	if ad.attempts[20] != 2 {
		t.Fatalf("attempts for failing chat = %d, want 2", ad.attempts[20])
	}
	if ad.attempts[10] != 1 || ad.attempts[30] != 1 {
		t.Fatalf("healthy chats retried: %v", ad.attempts)
	}
}

func TestSendRejectsUndeliverableContent(t *testing.T) {
	t.Parallel()
	svc := New(Config{}, newFakeAdapter(), subscribedStore(t, 10), logx.Nop())

	for _, raw := range []string{"", "not json", "{}", `{"text":"  "}`} {
		if _, err := svc.Send(context.Background(), raw); err == nil {
			t.Fatalf("Send(%q) succeeded, want error", raw)
		}
	}
}

func TestDispatchNowNotifiesAdmin(t *testing.T) {
	t.Parallel()
	const adminID int64 = 99
	ad := newFakeAdapter()
	svc := New(Config{}, ad, subscribedStore(t, 10, 20), logx.Nop())

	raw, err := Content{Text: "launch day"}.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.DispatchNow(context.Background(), adminID, raw); err != nil {
		t.Fatal(err)
	}
	notices := ad.texts[adminID]
	if len(notices) != 1 {
		t.Fatalf("admin notices = %v, want exactly one", notices)
	}
	if !strings.Contains(notices[0], "Delivered: 2") {
		t.Fatalf("notice %q does not report the delivered count", notices[0])
	}
}
