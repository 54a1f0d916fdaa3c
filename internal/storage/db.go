package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

func init() {
	// modernc регистрирует драйвер как "sqlite", sqlx знает только "sqlite3"
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open подключается к базе и накатывает схему
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// SQLite не умеет в параллельную запись, держим одно соединение
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set wal mode: %w", err)
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == DriverPostgres {
		schema = postgresSchema
	}

	_, err := db.ExecContext(ctx, schema)
	return err
}

// Плейсхолдеры squirrel под конкретный драйвер
func builder(db *sqlx.DB) sq.StatementBuilderType {
	if db.DriverName() == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Время храним в миллисекундах, так схема одинаковая для обеих баз
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	feed_url TEXT NOT NULL UNIQUE,
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	health_status TEXT NOT NULL DEFAULT 'unknown',
	last_error TEXT NOT NULL DEFAULT '',
	last_check_at BIGINT NOT NULL DEFAULT 0,
	created_at BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS news (
	id BIGSERIAL PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	original_title TEXT NOT NULL,
	url TEXT NOT NULL,
	source_name TEXT NOT NULL,
	published_at BIGINT NOT NULL,
	fetched_at BIGINT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	coin_tickers TEXT NOT NULL DEFAULT '[]',
	topic_category TEXT NOT NULL DEFAULT 'Other',
	status TEXT NOT NULL DEFAULT 'PENDING',
	analysis TEXT,
	posted_at BIGINT NOT NULL DEFAULT 0,
	rewrite TEXT
);
CREATE INDEX IF NOT EXISTS news_status_published_idx ON news (status, published_at DESC);
CREATE INDEX IF NOT EXISTS news_published_idx ON news (published_at);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	feed_url TEXT NOT NULL UNIQUE,
	enabled INTEGER NOT NULL DEFAULT 1,
	health_status TEXT NOT NULL DEFAULT 'unknown',
	last_error TEXT NOT NULL DEFAULT '',
	last_check_at INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS news (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	original_title TEXT NOT NULL,
	url TEXT NOT NULL,
	source_name TEXT NOT NULL,
	published_at INTEGER NOT NULL,
	fetched_at INTEGER NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	coin_tickers TEXT NOT NULL DEFAULT '[]',
	topic_category TEXT NOT NULL DEFAULT 'Other',
	status TEXT NOT NULL DEFAULT 'PENDING',
	analysis TEXT,
	posted_at INTEGER NOT NULL DEFAULT 0,
	rewrite TEXT
);
CREATE INDEX IF NOT EXISTS news_status_published_idx ON news (status, published_at DESC);
CREATE INDEX IF NOT EXISTS news_published_idx ON news (published_at);
`
