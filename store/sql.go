package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SQLStore implements Store over database/sql for postgres and sqlite.
type SQLStore struct {
	conn *Conn
	ttl  time.Duration
	now  func() time.Time
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps conn. No connection is made until the first call.
func NewSQLStore(conn *Conn, ttl time.Duration, opts ...Option) *SQLStore {
	o := buildOptions(opts)
	return &SQLStore{conn: conn, ttl: ttl, now: o.now}
}

func (s *SQLStore) q(query string) string { return s.conn.dialect.rebind(query) }

func (s *SQLStore) Save(ctx context.Context, rec *HistoryRecord) (string, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return "", err
	}
	suggestions := rec.Suggestions
	if suggestions == nil {
		suggestions = []SavedSuggestion{}
	}
	encoded, err := json.Marshal(suggestions)
	if err != nil {
		return "", fmt.Errorf("encode suggestions: %w", err)
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx, s.q(`INSERT INTO history
		(id, user_id, original_text, corrected_text, suggestions, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		id, rec.UserID, rec.OriginalText, rec.CorrectedText, string(encoded), toMicros(s.now()),
	)
	if err != nil {
		return "", fmt.Errorf("save history: %w", err)
	}
	return id, nil
}

// List runs the page query and the count concurrently.
func (s *SQLStore) List(ctx context.Context, userID string, page, limit int) (*HistoryPage, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	page, limit = ClampPage(page, limit)
	cutoff := s.cutoffMicros()
	offset := (page - 1) * limit

	var (
		records []HistoryRecord
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := db.QueryContext(gctx, s.q(`SELECT id, user_id, original_text, corrected_text, suggestions, created_at
			FROM history
			WHERE user_id = ? AND created_at >= ?
			ORDER BY created_at DESC, id DESC
			LIMIT ? OFFSET ?`),
			userID, cutoff, limit, offset,
		)
		if err != nil {
			return fmt.Errorf("list history: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanHistory(rows)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	g.Go(func() error {
		err := db.QueryRowContext(gctx, s.q(`SELECT COUNT(*) FROM history WHERE user_id = ? AND created_at >= ?`),
			userID, cutoff,
		).Scan(&total)
		if err != nil {
			return fmt.Errorf("count history: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return newPage(records, total, page, limit), nil
}

func (s *SQLStore) Delete(ctx context.Context, userID, id string) error {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, s.q(`DELETE FROM history WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, s.q(`DELETE FROM history WHERE created_at < ?`), toMicros(olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge history: %w", err)
	}
	return res.RowsAffected()
}

const userColumns = `id, email, name, image, checks_performed, created_at, last_login`

func (s *SQLStore) Upsert(ctx context.Context, id Identity) (*User, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	now := toMicros(s.now())
	row := db.QueryRowContext(ctx, s.q(`INSERT INTO users
		(id, email, name, image, checks_performed, created_at, last_login)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			name = excluded.name,
			image = excluded.image,
			last_login = excluded.last_login
		RETURNING `+userColumns),
		uuid.NewString(), id.Email, id.Name, id.Image, now, now,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) IncrementChecks(ctx context.Context, userID string) error {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, s.q(`UPDATE users SET checks_performed = checks_performed + 1 WHERE id = ?`), userID)
	if err != nil {
		return fmt.Errorf("increment checks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment checks: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, userID string) (*User, error) {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	db, err := s.conn.DB(ctx)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		// Drop the handle so the next request reconnects from scratch.
		_ = s.conn.Reset()
		return err
	}
	return nil
}

func (s *SQLStore) Close() error { return s.conn.Close() }

func (s *SQLStore) cutoffMicros() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return toMicros(s.now().Add(-s.ttl))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(r rowScanner) (HistoryRecord, error) {
	var (
		rec     HistoryRecord
		raw     string
		created int64
	)
	if err := r.Scan(&rec.ID, &rec.UserID, &rec.OriginalText, &rec.CorrectedText, &raw, &created); err != nil {
		return HistoryRecord{}, fmt.Errorf("scan history: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &rec.Suggestions); err != nil {
		return HistoryRecord{}, fmt.Errorf("decode suggestions for %s: %w", rec.ID, err)
	}
	if rec.Suggestions == nil {
		rec.Suggestions = []SavedSuggestion{}
	}
	rec.CreatedAt = fromMicros(created)
	return rec, nil
}

func scanUser(r rowScanner) (*User, error) {
	var (
		u                  User
		created, lastLogin int64
	)
	if err := r.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.ChecksPerformed, &created, &lastLogin); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMicros(created)
	u.LastLogin = fromMicros(lastLogin)
	return &u, nil
}

func toMicros(t time.Time) int64 { return t.UTC().UnixMicro() }

func fromMicros(us int64) time.Time { return time.UnixMicro(us).UTC() }
