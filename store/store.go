// Package store persists users and saved grammar checks. Three backends share
// one interface: an in-memory store for tests and single-process use, and a
// database/sql store speaking either postgres (pgx) or sqlite (modernc).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teilomillet/koreksi/config"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a record does not exist or is owned by
// another user. Callers cannot tell the two apart.
var ErrNotFound = errors.New("store: not found")

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Identity is what a caller signs in with. Email is the natural key.
type Identity struct {
	Email string
	Name  string
	Image string
}

// User is a signed-in account.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name,omitempty"`
	Image           string    `json:"image,omitempty"`
	ChecksPerformed int64     `json:"checksPerformed"`
	CreatedAt       time.Time `json:"createdAt"`
	LastLogin       time.Time `json:"lastLogin"`
}

// SavedSuggestion is the part of a suggestion kept in history. Offsets are
// not stored.
type SavedSuggestion struct {
	Original    string `json:"original"`
	Suggestion  string `json:"suggestion"`
	Explanation string `json:"explanation"`
}

// HistoryRecord is one saved check.
type HistoryRecord struct {
	ID            string            `json:"_id"`
	UserID        string            `json:"user"`
	OriginalText  string            `json:"originalText"`
	CorrectedText string            `json:"correctedText"`
	Suggestions   []SavedSuggestion `json:"suggestions"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// HistoryPage is one page of a user's history, newest first.
type HistoryPage struct {
	History    []HistoryRecord `json:"history"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int64           `json:"totalPages"`
	HasMore    bool            `json:"hasMore"`
}

// HistoryStore saves and pages through grammar check history.
type HistoryStore interface {
	// Save stores rec for rec.UserID and returns the new id. ID and
	// CreatedAt are assigned by the store.
	Save(ctx context.Context, rec *HistoryRecord) (string, error)
	List(ctx context.Context, userID string, page, limit int) (*HistoryPage, error)
	Delete(ctx context.Context, userID, id string) error
	// Purge removes records created before olderThan and reports how many.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// UserStore keeps one record per email.
type UserStore interface {
	// Upsert signs in id: on first sight the user is created, afterwards
	// name, image and last login are refreshed.
	Upsert(ctx context.Context, id Identity) (*User, error)
	IncrementChecks(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (*User, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	HistoryStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds the store selected by cfg.Driver. SQL backends connect lazily on
// first use.
func New(cfg config.DatabaseConfig, logger *zap.Logger, opts ...Option) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", "memory":
		logger.Info("Using in-memory store", zap.Duration("history_ttl", cfg.HistoryTTL))
		return NewMemoryStore(cfg.HistoryTTL, opts...), nil
	case "postgres", "sqlite":
		logger.Info("Using SQL store",
			zap.String("driver", cfg.Driver),
			zap.Duration("history_ttl", cfg.HistoryTTL),
		)
		conn, err := NewConn(cfg.Driver, cfg.DSN, cfg.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(conn, cfg.HistoryTTL, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// ClampPage normalises paging input: page is at least 1, limit falls in
// 1..MaxPageLimit, and 0 means DefaultPageLimit.
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func newPage(records []HistoryRecord, total int64, page, limit int) *HistoryPage {
	if records == nil {
		records = []HistoryRecord{}
	}
	skip := int64(page-1) * int64(limit)
	return &HistoryPage{
		History:    records,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
		HasMore:    skip+int64(len(records)) < total,
	}
}
