package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations upgrade a database from user_version i to i+1. Index 0 is the
// initial schema.
var migrations = []string{
	schemaSQL,
}

var currentSchemaVersion = len(migrations)

// SQLitePersister keeps the snapshot in a single-row SQLite table. WAL
// journaling means a crash during Save leaves the previous snapshot readable.
type SQLitePersister struct {
	db *sql.DB
}

// OpenSQLite opens or creates the local database at path and brings its
// schema up to date. The journal mode, sync level and busy timeout are set
// through the driver DSN so every pooled connection gets them.
func OpenSQLite(path string) (*SQLitePersister, error) {
	dsn := "file:" + path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store %s: %w", path, err)
	}
	// One writer; the store serializes saves anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open local store %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate local store %s: %w", path, err)
	}
	return &SQLitePersister{db: db}, nil
}

// Close closes the database connection.
func (p *SQLitePersister) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Load implements Persister.
func (p *SQLitePersister) Load(ctx context.Context) (*Snapshot, error) {
	var version int
	var payload string
	err := p.db.QueryRowContext(ctx, `SELECT version, payload FROM snapshots WHERE id = 1`).Scan(&version, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if version != SnapshotVersion {
		return nil, fmt.Errorf("load snapshot: unsupported version %d (want %d)", version, SnapshotVersion)
	}
	return unmarshalSnapshot([]byte(payload))
}

// Save implements Persister.
func (p *SQLitePersister) Save(ctx context.Context, snap Snapshot) error {
	payload, err := marshalSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, version, payload, saved_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			payload = excluded.payload,
			saved_at = excluded.saved_at
	`, snap.Version, string(payload), snap.SavedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// migrate applies the migrations past the database's user_version, each in
// its own transaction.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	for v := version; v < currentSchemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
	}
	return nil
}

// pragma reads a connection setting.
func (p *SQLitePersister) pragma(name string) (string, error) {
	var value string
	err := p.db.QueryRow("PRAGMA " + name).Scan(&value)
	return value, err
}

var _ Persister = (*SQLitePersister)(nil)
