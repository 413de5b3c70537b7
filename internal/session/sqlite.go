package session

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/bankguard/internal/common"
	"github.com/dmitrijs2005/bankguard/internal/dbx"
	"github.com/dmitrijs2005/bankguard/internal/filex"
	"github.com/dmitrijs2005/bankguard/internal/session/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

const (
	activeValue = "active"
	lockedValue = "true"
)

// SQLiteStore keeps the record in the metadata table of a SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	keys Keys
}

// NewSQLiteStore binds a store for the given surface keys to db. The schema
// must already exist (see Open).
func NewSQLiteStore(db *sql.DB, keys Keys) *SQLiteStore {
	return &SQLiteStore{db: db, keys: keys}
}

// RunMigrations applies the embedded schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatal("failed to set goose dialect:", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the session database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if err := filex.EnsureParentDir(dsn); err != nil {
		return nil, storageErr("prepare session db", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageErr("open session db", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, storageErr("migrate session db", err)
	}
	return db, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (Record, error) {
	values, err := getMany(ctx, s.db, s.keys.all())
	if err != nil {
		return Record{}, storageErr("load session", err)
	}

	var r Record
	r.LoggedIn = values[s.keys.Session] == activeValue
	if !r.LoggedIn {
		// Stray keys without a login flag do not make a session.
		return r, nil
	}

	if id := values[s.keys.UserID]; id != "" {
		r.UserID = &id
	}
	if raw := values[s.keys.LastActive]; raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			at := time.UnixMilli(ms)
			r.LastActiveAt = &at
		}
	}
	if s.keys.Locked != "" {
		r.LockedLocally = values[s.keys.Locked] == lockedValue
	}
	return r, nil
}

func (s *SQLiteStore) Save(ctx context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if !r.LoggedIn {
		return s.Clear(ctx)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := set(ctx, tx, s.keys.Session, activeValue); err != nil {
			return err
		}
		if err := setOrDelete(ctx, tx, s.keys.UserID, r.UserID != nil, r.User()); err != nil {
			return err
		}
		var last string
		if r.LastActiveAt != nil {
			last = formatMillis(*r.LastActiveAt)
		}
		if err := setOrDelete(ctx, tx, s.keys.LastActive, r.LastActiveAt != nil, last); err != nil {
			return err
		}
		if s.keys.Locked == "" {
			return nil
		}
		return setOrDelete(ctx, tx, s.keys.Locked, r.LockedLocally, lockedValue)
	})
	if err != nil {
		return storageErr("save session", err)
	}
	return nil
}

func (s *SQLiteStore) Touch(ctx context.Context, at time.Time) error {
	if err := set(ctx, s.db, s.keys.LastActive, formatMillis(at)); err != nil {
		return storageErr("touch session", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, k := range s.keys.all() {
			if err := del(ctx, tx, k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storageErr("clear session", err)
	}
	return nil
}

func (s *SQLiteStore) Wipe(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM metadata`); err != nil {
		return storageErr("wipe local storage", fmt.Errorf("failed to clear metadata: %w", err))
	}
	return nil
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorage, err)
}

func set(ctx context.Context, db dbx.DBTX, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, []byte(value))
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func del(ctx context.Context, db dbx.DBTX, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func setOrDelete(ctx context.Context, db dbx.DBTX, key string, present bool, value string) error {
	if present {
		return set(ctx, db, key, value)
	}
	return del(ctx, db, key)
}

// getMany reads keys in one statement so the caller sees a consistent
// snapshot. Absent keys are missing from the result.
func getMany(ctx context.Context, db dbx.DBTX, keys []string) (map[string]string, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := db.QueryContext(ctx, `SELECT key, value FROM metadata WHERE key IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string, len(keys))
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		result[key] = string(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metadata rows: %w", err)
	}
	return result, nil
}
