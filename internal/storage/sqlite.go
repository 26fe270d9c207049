package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "castbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	st.log.Debug("sqlite store ready", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const broadcastCols = `id, admin_id, content, scheduled_at, created_at, is_sent, sent_at, attempts`

func (s *sqliteStore) CreateBroadcast(ctx context.Context, adminID int64, content string, scheduledAt, now time.Time) (Broadcast, error) {
	if err := validateSchedule(scheduledAt, now); err != nil {
		return Broadcast{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_broadcasts(admin_id, content, scheduled_at, created_at, is_sent, attempts)
		 VALUES(?,?,?,?,0,0)`,
		adminID, content, scheduledAt.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return Broadcast{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Broadcast{}, err
	}
	return Broadcast{
		ID:          id,
		AdminID:     adminID,
		Content:     content,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
	}, nil
}

func (s *sqliteStore) GetBroadcast(ctx context.Context, id int64) (Broadcast, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+broadcastCols+` FROM scheduled_broadcasts WHERE id = ?`, id)
	b, err := scanBroadcast(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Broadcast{}, ErrNotFound
	}
	return b, err
}

func (s *sqliteStore) ListByAdmin(ctx context.Context, adminID int64) ([]Broadcast, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+broadcastCols+` FROM scheduled_broadcasts
		 WHERE admin_id = ? ORDER BY scheduled_at ASC, id ASC`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBroadcasts(rows)
}

func (s *sqliteStore) ListDue(ctx context.Context, now time.Time, maxAttempts int) ([]Broadcast, error) {
	q := `SELECT ` + broadcastCols + ` FROM scheduled_broadcasts
	      WHERE is_sent = 0 AND scheduled_at <= ?`
	args := []any{now.UnixMilli()}
	if maxAttempts > 0 {
		q += ` AND attempts < ?`
		args = append(args, maxAttempts)
	}
	q += ` ORDER BY scheduled_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBroadcasts(rows)
}

func (s *sqliteStore) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_broadcasts SET is_sent = 1, sent_at = ?
		 WHERE id = ? AND is_sent = 0`,
		sentAt.UnixMilli(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// No row updated: either already sent (no-op) or missing.
	_, err = s.GetBroadcast(ctx, id)
	return err
}

func (s *sqliteStore) RecordAttempt(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_broadcasts SET attempts = attempts + 1
		 WHERE id = ? AND is_sent = 0`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeleteBroadcast(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scheduled_broadcasts WHERE id = ? AND is_sent = 0`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetBroadcast(ctx, id); err != nil {
		return err
	}
	return ErrAlreadySent
}

func (s *sqliteStore) UpsertSubscriber(ctx context.Context, chatID int64, username string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers(chat_id, username, joined_at) VALUES(?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET username=excluded.username`,
		chatID, nullStr(username), now.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) ListSubscribers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM subscribers ORDER BY chat_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBroadcast(r rowScanner) (Broadcast, error) {
	var (
		b           Broadcast
		scheduledMS int64
		createdMS   int64
		sent        int
		sentMS      sql.NullInt64
	)
	if err := r.Scan(&b.ID, &b.AdminID, &b.Content, &scheduledMS, &createdMS, &sent, &sentMS, &b.Attempts); err != nil {
		return Broadcast{}, err
	}
	b.ScheduledAt = time.UnixMilli(scheduledMS)
	b.CreatedAt = time.UnixMilli(createdMS)
	b.Sent = sent != 0
	if sentMS.Valid {
		b.SentAt = time.UnixMilli(sentMS.Int64)
	}
	return b, nil
}

func collectBroadcasts(rows *sql.Rows) ([]Broadcast, error) {
	var out []Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
