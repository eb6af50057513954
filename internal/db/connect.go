// Package db owns the durable connection and the store-wide mutex that
// serializes every read-modify-write sequence against it.
package db

import (
	"fmt"
	"sync"

	"github.com/lotline/lotline/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Handle wraps one persistent GORM connection behind a single mutex.
// The mutex is held for the duration of any multi-statement sequence;
// the database itself runs in WAL mode so committed writes survive a
// restart while synchronous commit stays relaxed.
type Handle struct {
	mu   sync.Mutex
	gorm *gorm.DB
}

// Open connects to the engine selected by cfg and returns a Handle.
func Open(cfg config.DatabaseConfig) (*Handle, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var (
		conn *gorm.DB
		err  error
	)
	switch cfg.Driver {
	case "mysql":
		conn, err = gorm.Open(mysql.Open(MySQLDSN(cfg)), gcfg)
	case "sqlite", "":
		conn, err = gorm.Open(sqlite.Open(SQLiteDSN(cfg.Path)), gcfg)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", cfg.Driver, err)
	}

	if cfg.Driver != "mysql" {
		// SQLite allows one writer; a second pooled conn only buys
		// SQLITE_BUSY errors under the serializing mutex.
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("db: unwrap sqlite conn: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &Handle{gorm: conn}, nil
}

// NewHandle wraps an already-open GORM connection. Used by tests.
func NewHandle(conn *gorm.DB) *Handle {
	return &Handle{gorm: conn}
}

// SQLiteDSN builds a DSN with WAL journaling and relaxed synchronous
// commit. ":memory:" passes through for ephemeral stores.
func SQLiteDSN(path string) string {
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	return fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000",
		path,
	)
}

// MySQLDSN builds a MySQL DSN from config.
func MySQLDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", cfg.User, cfg.Host, cfg.Port, cfg.Name)
}

// WithLock runs fn with the store mutex held. Every component call that
// spans more than one statement, or that must see a consistent snapshot
// across several aggregates, goes through here. fn must not call back
// into WithLock: the mutex is not reentrant.
func (h *Handle) WithLock(fn func(tx *gorm.DB) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.gorm)
}
