package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// DB wraps a SQL connection and the dialect it speaks.
type DB struct {
	conn    *sql.DB
	dialect dialect
	path    string // database file, sqlite only
}

// Open connects to driver ("sqlite", "postgres" or "mysql") and runs the
// migrations. For sqlite the dsn is a file path; its directory is created.
// MySQL DSNs need parseTime=true.
func Open(driver, dsn string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	var path string
	if d.name == "sqlite" {
		path, dsn, err = sqliteDSN(dsn)
		if err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if d.name == "sqlite" {
		// SQLite only supports one writer; a single connection avoids SQLITE_BUSY
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn, dialect: d, path: path}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenSQLite opens (or creates) the SQLite file at dbPath.
func OpenSQLite(dbPath string) (*DB, error) {
	return Open("sqlite", dbPath)
}

func sqliteDSN(dsn string) (path, full string, err error) {
	path, _, _ = strings.Cut(dsn, "?")
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return "", dsn, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", "", fmt.Errorf("create db directory: %w", err)
	}
	if strings.Contains(dsn, "?") {
		return path, dsn, nil
	}
	return path, dsn + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Driver returns the dialect name.
func (db *DB) Driver() string {
	return db.dialect.name
}

// Path is the database file for sqlite and empty otherwise.
func (db *DB) Path() string {
	return db.path
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, db.dialect.rebind(query), args...)
}

// tx is a transaction that rebinds placeholders like DB does.
type tx struct {
	*sql.Tx
	dialect dialect
}

func (t tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.ExecContext(ctx, t.dialect.rebind(query), args...)
}

func (db *DB) inTx(ctx context.Context, fn func(tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx{Tx: sqlTx, dialect: db.dialect}); err != nil {
		sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

func (db *DB) migrate(ctx context.Context) error {
	d := db.dialect
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS pages (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			layout_json ` + d.text + ` NOT NULL,
			version BIGINT NOT NULL DEFAULT 0,
			created_at ` + d.timestamp + ` NOT NULL,
			updated_at ` + d.timestamp + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS layout_revisions (
			id VARCHAR(64) PRIMARY KEY,
			page_id VARCHAR(64) NOT NULL,
			parent_id VARCHAR(64),
			label VARCHAR(255) NOT NULL,
			layout_json ` + d.text + ` NOT NULL,
			created_at ` + d.timestamp + ` NOT NULL
		)`,
		d.createIndex("idx_layout_revisions_page", "layout_revisions", "page_id"),
		`CREATE TABLE IF NOT EXISTS products (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			image_url VARCHAR(1024) NOT NULL DEFAULT '',
			available BOOLEAN NOT NULL DEFAULT TRUE,
			sort_order INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.ExecContext(ctx, m); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS; an existing index is fine
			if d.isDuplicateIndex(err) {
				continue
			}
			return fmt.Errorf("migration failed: %s: %w", firstLine(m), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
