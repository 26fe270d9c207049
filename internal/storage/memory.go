package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is a dependency-free in-process backend. It keeps the same
// semantics as the sqlite driver (idempotent MarkSent, delete guard) but
// loses everything on restart. Used for tests and dry runs.
type memStore struct {
	mu sync.Mutex

	nextID     int64
	broadcasts map[int64]Broadcast
	subs       map[int64]Subscriber
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memStore{
		nextID:     1,
		broadcasts: map[int64]Broadcast{},
		subs:       map[int64]Subscriber{},
	}
}

func (s *memStore) Close() error { return nil }

func (s *memStore) CreateBroadcast(ctx context.Context, adminID int64, content string, scheduledAt, now time.Time) (Broadcast, error) {
	_ = ctx
	if err := validateSchedule(scheduledAt, now); err != nil {
		return Broadcast{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := Broadcast{
		ID:          s.nextID,
		AdminID:     adminID,
		Content:     content,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
	}
	s.nextID++
	s.broadcasts[b.ID] = b
	return b, nil
}

func (s *memStore) GetBroadcast(ctx context.Context, id int64) (Broadcast, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return Broadcast{}, ErrNotFound
	}
	return b, nil
}

func (s *memStore) ListByAdmin(ctx context.Context, adminID int64) ([]Broadcast, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Broadcast
	for _, b := range s.broadcasts {
		if b.AdminID == adminID {
			out = append(out, b)
		}
	}
	sortBroadcasts(out)
	return out, nil
}

func (s *memStore) ListDue(ctx context.Context, now time.Time, maxAttempts int) ([]Broadcast, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Broadcast
	for _, b := range s.broadcasts {
		if b.Sent || b.ScheduledAt.After(now) {
			continue
		}
		if maxAttempts > 0 && b.Attempts >= maxAttempts {
			continue
		}
		out = append(out, b)
	}
	sortBroadcasts(out)
	return out, nil
}

func (s *memStore) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return ErrNotFound
	}
	if b.Sent {
		return nil
	}
	b.Sent = true
	b.SentAt = sentAt
	s.broadcasts[id] = b
	return nil
}

func (s *memStore) RecordAttempt(ctx context.Context, id int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok || b.Sent {
		return ErrNotFound
	}
	b.Attempts++
	s.broadcasts[id] = b
	return nil
}

func (s *memStore) DeleteBroadcast(ctx context.Context, id int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return ErrNotFound
	}
	if b.Sent {
		return ErrAlreadySent
	}
	delete(s.broadcasts, id)
	return nil
}

func (s *memStore) UpsertSubscriber(ctx context.Context, chatID int64, username string, now time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[chatID]
	if !ok {
		sub = Subscriber{ChatID: chatID, JoinedAt: now}
	}
	sub.Username = username
	s.subs[chatID] = sub
	return nil
}

func (s *memStore) ListSubscribers(ctx context.Context) ([]int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func sortBroadcasts(bs []Broadcast) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].ScheduledAt.Equal(bs[j].ScheduledAt) {
			return bs[i].ScheduledAt.Before(bs[j].ScheduledAt)
		}
		return bs[i].ID < bs[j].ID
	})
}
