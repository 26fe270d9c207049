// Package router translates raw transport updates into logical dialog
// actions and renders dialog views back into Telegram messages. It is the
// only place that knows both the update wire shapes and the dialog's
// action vocabulary; the dialog itself never sees Telegram types.
package router

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"castbot/internal/services/broadcast"
	"castbot/internal/services/schedule"
	"castbot/internal/storage"
	kit "castbot/internal/transport"
	logx "castbot/pkg/logx"
	"castbot/pkg/tgui"
)

// callbackScope tags all callback data produced by this router.
const callbackScope = "sched"

type Router struct {
	adapter kit.Adapter
	dialog  *schedule.Service
	store   storage.Store
	log     logx.Logger

	mu     sync.RWMutex
	admins map[int64]struct{}

	// now is the injected clock (tests replace it).
	now func() time.Time
}

func New(adapter kit.Adapter, dialog *schedule.Service, store storage.Store, adminIDs []int64, log logx.Logger) *Router {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Router{
		adapter: adapter,
		dialog:  dialog,
		store:   store,
		log:     log,
		admins:  admins,
		now:     time.Now,
	}
}

// SetAdmins replaces the admin allow-list (config hot reload).
func (r *Router) SetAdmins(ids []int64) {
	admins := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		admins[id] = struct{}{}
	}
	r.mu.Lock()
	r.admins = admins
	r.mu.Unlock()
}

func (r *Router) isAdmin(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.admins[id]
	return ok
}

// Handle processes one inbound update. Errors are logged, never returned:
// a single bad update must not take the update loop down.
func (r *Router) Handle(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.handleMessage(ctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.handleCallback(ctx, up.Callback)
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, m *kit.Message) {
	if m.IsGroup {
		return
	}

	if !r.isAdmin(m.FromID) {
		r.handleSubscriber(ctx, m)
		return
	}

	text := strings.TrimSpace(m.Text)
	switch {
	case text == "/start" || text == "/help":
		r.reply(ctx, m.ChatID, adminHelp, nil)
		return
	case text == "/scheduled":
		r.listScheduled(ctx, m)
		return
	case strings.HasPrefix(text, "/cancel"):
		r.cancelByID(ctx, m, strings.TrimSpace(strings.TrimPrefix(text, "/cancel")))
		return
	}

	if r.dialog.Active(m.FromID) {
		// Mid-dialog text is time input.
		r.step(ctx, m.FromID, m.ChatID, 0, schedule.ActionTimeText, text)
		return
	}

	// Any other message from an admin is a broadcast draft. Keep a
	// reference so media and formatting survive delivery verbatim.
	content, err := broadcast.Content{
		MessageID: m.ID,
		ChatID:    m.ChatID,
		Text:      m.Text,
	}.Encode()
	if err != nil {
		r.log.Error("draft encode failed", logx.Err(err))
		return
	}
	r.step(ctx, m.FromID, m.ChatID, 0, schedule.ActionStart, content)
}

func (r *Router) handleSubscriber(ctx context.Context, m *kit.Message) {
	if err := r.store.UpsertSubscriber(ctx, m.ChatID, m.FromUsername, r.now()); err != nil {
		r.log.Warn("subscriber upsert failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
	}
	if strings.TrimSpace(m.Text) == "/start" {
		r.reply(ctx, m.ChatID, "You are subscribed to announcements from this bot.", nil)
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *kit.Callback) {
	// Acknowledge early so the client stops its spinner regardless of outcome.
	if err := r.adapter.AnswerCallback(ctx, cb.ID, ""); err != nil {
		r.log.Debug("callback answer failed", logx.Err(err))
	}
	if !r.isAdmin(cb.FromID) {
		return
	}

	scope, action, payload := tgui.Parse(cb.Data)
	if scope != callbackScope || schedule.Action(action) == schedule.ActionNoop {
		return
	}
	r.step(ctx, cb.FromID, cb.ChatID, cb.MessageID, schedule.Action(action), payload)
}

// step runs one dialog transition and renders the resulting view. Callback
// steps edit the originating message in place; message steps send a reply.
func (r *Router) step(ctx context.Context, adminID, chatID int64, messageID int, action schedule.Action, payload string) {
	view, err := r.dialog.Handle(ctx, adminID, action, payload)
	if err != nil {
		r.log.Error("dialog step failed",
			logx.Int64("admin", adminID),
			logx.String("action", string(action)),
			logx.Err(err),
		)
		r.reply(ctx, chatID, "Something went wrong; try again.", nil)
		return
	}

	markup := markupFor(view)
	if messageID != 0 {
		ref := kit.MessageRef{ChatID: chatID, MessageID: messageID}
		if err := r.adapter.EditText(ctx, ref, view.Text, markup); err == nil {
			return
		}
		// Telegram rejects no-op edits; fall through to a fresh message.
	}
	r.reply(ctx, chatID, view.Text, markup)
}

func (r *Router) reply(ctx context.Context, chatID int64, text string, opt *kit.SendOptions) {
	if _, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}

func (r *Router) listScheduled(ctx context.Context, m *kit.Message) {
	list, err := r.store.ListByAdmin(ctx, m.FromID)
	if err != nil {
		r.log.Error("scheduled listing failed", logx.Int64("admin", m.FromID), logx.Err(err))
		r.reply(ctx, m.ChatID, "Could not load scheduled broadcasts.", nil)
		return
	}

	// Echo times in the zone the operator scheduled them in.
	loc := r.dialog.Location()

	var b strings.Builder
	n := 0
	for _, item := range list {
		if item.Sent {
			continue
		}
		n++
		fmt.Fprintf(&b, "#%d — %s", item.ID, item.ScheduledAt.In(loc).Format("02.01.2006 15:04"))
		if item.Attempts > 0 {
			fmt.Fprintf(&b, " (%d failed attempts)", item.Attempts)
		}
		b.WriteString("\n")
	}
	if n == 0 {
		r.reply(ctx, m.ChatID, "No pending broadcasts. Send a message to schedule one.", nil)
		return
	}
	r.reply(ctx, m.ChatID, fmt.Sprintf("Pending broadcasts:\n%s\nCancel one with /cancel <id>.", b.String()), nil)
}

func (r *Router) cancelByID(ctx context.Context, m *kit.Message, arg string) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		r.reply(ctx, m.ChatID, "Usage: /cancel <id> (see /scheduled for ids).", nil)
		return
	}

	b, err := r.store.GetBroadcast(ctx, id)
	switch {
	case err == nil && b.AdminID != m.FromID:
		// Admins only manage their own schedule.
		r.reply(ctx, m.ChatID, fmt.Sprintf("Broadcast #%d was scheduled by another admin.", id), nil)
		return
	case err != nil:
		r.reply(ctx, m.ChatID, fmt.Sprintf("Broadcast #%d is already removed.", id), nil)
		return
	}

	switch err := r.store.DeleteBroadcast(ctx, id); {
	case err == nil:
		r.reply(ctx, m.ChatID, fmt.Sprintf("Broadcast #%d cancelled.", id), nil)
	case errors.Is(err, storage.ErrAlreadySent):
		// Lost the race against delivery.
		r.reply(ctx, m.ChatID, fmt.Sprintf("Broadcast #%d has already been sent.", id), nil)
	default:
		r.reply(ctx, m.ChatID, fmt.Sprintf("Broadcast #%d can no longer be cancelled.", id), nil)
	}
}

const adminHelp = `This bot delivers announcements to subscribers.

Send any message to start scheduling it as a broadcast.
/scheduled — list pending broadcasts
/cancel <id> — cancel a pending broadcast`
