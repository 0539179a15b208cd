package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in maps guarded by one mutex. Data is lost on
// restart.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	history map[string]HistoryRecord
	users   map[string]*User
	byEmail map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. Records older than ttl are hidden
// from List; ttl <= 0 keeps them visible until purged.
func NewMemoryStore(ttl time.Duration, opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		ttl:     ttl,
		now:     o.now,
		history: make(map[string]HistoryRecord),
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) Save(ctx context.Context, rec *HistoryRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stored := *rec
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now().UTC()
	stored.Suggestions = append([]SavedSuggestion{}, rec.Suggestions...)

	s.mu.Lock()
	s.history[stored.ID] = stored
	s.mu.Unlock()
	return stored.ID, nil
}

func (s *MemoryStore) List(ctx context.Context, userID string, page, limit int) (*HistoryPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, limit = ClampPage(page, limit)
	cutoff := s.cutoff()

	s.mu.RLock()
	var owned []HistoryRecord
	for _, rec := range s.history {
		if rec.UserID == userID && !rec.CreatedAt.Before(cutoff) {
			owned = append(owned, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	total := int64(len(owned))
	start := (page - 1) * limit
	if start > len(owned) {
		start = len(owned)
	}
	end := start + limit
	if end > len(owned) {
		end = len(owned)
	}
	return newPage(owned[start:end], total, page, limit), nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.history[id]
	if !ok || rec.UserID != userID {
		return ErrNotFound
	}
	delete(s.history, id)
	return nil
}

func (s *MemoryStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.history {
		if rec.CreatedAt.Before(olderThan) {
			delete(s.history, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, id Identity) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if userID, ok := s.byEmail[id.Email]; ok {
		u := s.users[userID]
		u.Name = id.Name
		u.Image = id.Image
		u.LastLogin = now
		cp := *u
		return &cp, nil
	}

	u := &User{
		ID:        uuid.NewString(),
		Email:     id.Email,
		Name:      id.Name,
		Image:     id.Image,
		CreatedAt: now,
		LastLogin: now,
	}
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) IncrementChecks(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.ChecksPerformed++
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) cutoff() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().UTC().Add(-s.ttl)
}
