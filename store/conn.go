package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Conn holds at most one live *sql.DB per process. The handle is opened,
// pinged and migrated on first use and reused afterwards. A failed open
// leaves the Conn uninitialised so the next call tries again.
type Conn struct {
	dialect dialect
	dsn     string
	maxOpen int

	mu sync.Mutex
	db *sql.DB

	// openFn is swapped in tests.
	openFn func(driver, dsn string) (*sql.DB, error)
}

// NewConn prepares a connection for driver ("postgres" or "sqlite") without
// touching the network.
func NewConn(driver, dsn string, maxOpenConns int) (*Conn, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%s: empty dsn", driver)
	}
	return &Conn{dialect: d, dsn: dsn, maxOpen: maxOpenConns, openFn: sql.Open}, nil
}

// DB returns the shared handle, connecting on first call.
func (c *Conn) DB(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return c.db, nil
	}

	db, err := c.openFn(c.dialect.driverName, c.dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.dialect.name, err)
	}
	if c.dialect.singleWriter {
		// One connection keeps :memory: databases alive and serialises writers.
		db.SetMaxOpenConns(1)
	} else if c.maxOpen > 0 {
		db.SetMaxOpenConns(c.maxOpen)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", c.dialect.name, err)
	}
	for _, stmt := range c.dialect.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate %s: %w", c.dialect.name, err)
		}
	}

	c.db = db
	return db, nil
}

// Reset drops the cached handle. The next DB call reconnects.
func (c *Conn) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Close releases the handle.
func (c *Conn) Close() error { return c.Reset() }
