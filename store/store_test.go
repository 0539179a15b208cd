package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/koreksi/config"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

const testTTL = 30 * 24 * time.Hour

type storeFactory func(t *testing.T, clock *fakeClock) Store

func backends(t *testing.T) map[string]storeFactory {
	t.Helper()
	b := map[string]storeFactory{
		"memory": func(t *testing.T, clock *fakeClock) Store {
			return NewMemoryStore(testTTL, WithClock(clock.Now))
		},
		"sqlite": func(t *testing.T, clock *fakeClock) Store {
			conn, err := NewConn("sqlite", ":memory:", 0)
			require.NoError(t, err)
			s := NewSQLStore(conn, testTTL, WithClock(clock.Now))
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
	if dsn := os.Getenv("KOREKSI_TEST_POSTGRES_DSN"); dsn != "" {
		b["postgres"] = func(t *testing.T, clock *fakeClock) Store {
			conn, err := NewConn("postgres", dsn, 4)
			require.NoError(t, err)
			db, err := conn.DB(context.Background())
			require.NoError(t, err)
			_, err = db.Exec(`DELETE FROM history`)
			require.NoError(t, err)
			_, err = db.Exec(`DELETE FROM users`)
			require.NoError(t, err)
			s := NewSQLStore(conn, testTTL, WithClock(clock.Now))
			t.Cleanup(func() { _ = s.Close() })
			return s
		}
	}
	return b
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store, clock *fakeClock)) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			fn(t, factory(t, clock), clock)
		})
	}
}

func TestUpsertCreatesThenRefreshes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		t0 := clock.Now()

		first, err := s.Upsert(ctx, Identity{Email: "ana@example.com", Name: "Ana", Image: "a.png"})
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, int64(0), first.ChecksPerformed)
		assert.True(t, first.CreatedAt.Equal(t0))
		assert.True(t, first.LastLogin.Equal(t0))

		clock.Advance(time.Hour)
		second, err := s.Upsert(ctx, Identity{Email: "ana@example.com", Name: "Ana B", Image: "b.png"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Ana B", second.Name)
		assert.Equal(t, "b.png", second.Image)
		assert.True(t, second.CreatedAt.Equal(t0), "createdAt is only set on insert")
		assert.True(t, second.LastLogin.Equal(t0.Add(time.Hour)))

		other, err := s.Upsert(ctx, Identity{Email: "budi@example.com"})
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, other.ID)
	})
}

func TestIncrementChecks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, _ *fakeClock) {
		ctx := context.Background()
		u, err := s.Upsert(ctx, Identity{Email: "c@example.com"})
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			require.NoError(t, s.IncrementChecks(ctx, u.ID))
		}
		got, err := s.Get(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.ChecksPerformed)

		// Signing in again keeps the counter.
		again, err := s.Upsert(ctx, Identity{Email: "c@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), again.ChecksPerformed)

		assert.ErrorIs(t, s.IncrementChecks(ctx, uuid.NewString()), ErrNotFound)
		_, err = s.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func saveN(t *testing.T, s Store, clock *fakeClock, userID string, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id, err := s.Save(context.Background(), &HistoryRecord{
			UserID:        userID,
			OriginalText:  fmt.Sprintf("text %d", i),
			CorrectedText: fmt.Sprintf("fixed %d", i),
			Suggestions:   []SavedSuggestion{{Original: "a", Suggestion: "b", Explanation: "c"}},
		})
		require.NoError(t, err)
		ids[i] = id
		clock.Advance(time.Minute)
	}
	return ids
}

func TestHistoryPaging(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		saveN(t, s, clock, "user-1", 25)
		saveN(t, s, clock, "user-2", 3)

		p1, err := s.List(ctx, "user-1", 1, 10)
		require.NoError(t, err)
		require.Len(t, p1.History, 10)
		assert.Equal(t, int64(25), p1.Total)
		assert.Equal(t, int64(3), p1.TotalPages)
		assert.True(t, p1.HasMore)
		assert.Equal(t, "text 24", p1.History[0].OriginalText, "newest first")
		assert.Equal(t, "text 15", p1.History[9].OriginalText)
		for _, rec := range p1.History {
			assert.Equal(t, "user-1", rec.UserID)
		}

		p3, err := s.List(ctx, "user-1", 3, 10)
		require.NoError(t, err)
		require.Len(t, p3.History, 5)
		assert.False(t, p3.HasMore)
		assert.Equal(t, "text 0", p3.History[4].OriginalText)

		p4, err := s.List(ctx, "user-1", 4, 10)
		require.NoError(t, err)
		assert.NotNil(t, p4.History)
		assert.Empty(t, p4.History)
		assert.False(t, p4.HasMore)

		none, err := s.List(ctx, "nobody", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(0), none.Total)
		assert.Equal(t, int64(0), none.TotalPages)
	})
}

func TestHistoryRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		id, err := s.Save(ctx, &HistoryRecord{
			UserID:        "u",
			OriginalText:  "aku pergi ke pasar",
			CorrectedText: "Aku pergi ke pasar.",
			Suggestions: []SavedSuggestion{
				{Original: "aku", Suggestion: "Aku", Explanation: "huruf kapital"},
			},
		})
		require.NoError(t, err)
		_, err = s.Save(ctx, &HistoryRecord{UserID: "u", OriginalText: "x", CorrectedText: "y"})
		require.NoError(t, err)

		page, err := s.List(ctx, "u", 1, 10)
		require.NoError(t, err)
		require.Len(t, page.History, 2)

		var found *HistoryRecord
		for i := range page.History {
			if page.History[i].ID == id {
				found = &page.History[i]
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, "Aku pergi ke pasar.", found.CorrectedText)
		assert.Equal(t, []SavedSuggestion{{Original: "aku", Suggestion: "Aku", Explanation: "huruf kapital"}}, found.Suggestions)
		assert.True(t, found.CreatedAt.Equal(clock.Now()))

		for _, rec := range page.History {
			assert.NotNil(t, rec.Suggestions)
		}
	})
}

func TestHistoryDeleteIsScopedToOwner(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		ids := saveN(t, s, clock, "owner", 2)

		assert.ErrorIs(t, s.Delete(ctx, "intruder", ids[0]), ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "owner", uuid.NewString()), ErrNotFound)

		require.NoError(t, s.Delete(ctx, "owner", ids[0]))
		assert.ErrorIs(t, s.Delete(ctx, "owner", ids[0]), ErrNotFound)

		page, err := s.List(ctx, "owner", 1, 10)
		require.NoError(t, err)
		require.Len(t, page.History, 1)
		assert.Equal(t, ids[1], page.History[0].ID)
	})
}

func TestHistoryExpiry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		saveN(t, s, clock, "u", 2)
		clock.Advance(testTTL)
		saveN(t, s, clock, "u", 1)

		page, err := s.List(ctx, "u", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total, "expired records are hidden before the sweep")
		require.Len(t, page.History, 1)
		assert.Equal(t, "text 0", page.History[0].OriginalText)

		n, err := s.Purge(ctx, clock.Now().Add(-testTTL))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.Purge(ctx, clock.Now().Add(-testTTL))
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestPing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store, _ *fakeClock) {
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{1, 10, 1, 10},
		{0, 0, 1, DefaultPageLimit},
		{-3, 5, 1, 5},
		{2, -1, 2, 1},
		{7, 1000, 7, MaxPageLimit},
		{1, 100, 1, 100},
	}
	for _, tt := range tests {
		page, limit := ClampPage(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, page, "page for %d/%d", tt.page, tt.limit)
		assert.Equal(t, tt.wantLimit, limit, "limit for %d/%d", tt.page, tt.limit)
	}
}

func TestNewPage(t *testing.T) {
	p := newPage(make([]HistoryRecord, 3), 23, 3, 10)
	assert.Equal(t, int64(3), p.TotalPages)
	assert.False(t, p.HasMore)

	p = newPage(make([]HistoryRecord, 10), 21, 2, 10)
	assert.True(t, p.HasMore)

	p = newPage(nil, 0, 1, 10)
	assert.NotNil(t, p.History)
	assert.Zero(t, p.TotalPages)
}

func TestNew(t *testing.T) {
	s, err := New(config.DatabaseConfig{Driver: "memory", HistoryTTL: time.Hour}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", HistoryTTL: time.Hour}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = New(config.DatabaseConfig{Driver: "postgres"}, nil)
	assert.Error(t, err)

	_, err = New(config.DatabaseConfig{Driver: "mongo"}, nil)
	assert.Error(t, err)
}
