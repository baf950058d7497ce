// Package sqlite persists catalog records and accounts in SQLite through
// database/sql and the cgo-free modernc.org/sqlite driver.
//
// The relational layout is the classic one for this service: a FILE table
// keyed by filename and an ACCOUNT table keyed by username. Schema creation
// is idempotent and runs at open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ybecker/catalogd/pkg/store"
)

// InMemoryPath opens a private in-memory database. Used by tests.
const InMemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS FILE (
	FILENAME       TEXT PRIMARY KEY,
	FILESIZE       BIGINT NOT NULL,
	USERNAME       TEXT NOT NULL,
	FILEPERMISSION TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ACCOUNT (
	NAME     TEXT PRIMARY KEY,
	PASSWORD TEXT NOT NULL
);`

// Store is a SQLite-backed store implementing both store.CatalogStore and
// store.AccountStore. Both tables live in one database file; SQLite's WAL
// mode handles the concurrent readers.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and ensures the
// schema exists.
func New(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != InMemoryPath {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database at %s: %w", dbPath, err)
	}

	// modernc.org/sqlite serializes writers anyway; a single connection
	// avoids SQLITE_BUSY churn under concurrent callers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

func ioError(op string, err error) *store.StoreError {
	return &store.StoreError{
		Code:    store.ErrIOError,
		Message: fmt.Sprintf("sqlite %s: %v", op, err),
	}
}

// isUniqueViolation reports whether err is SQLite's primary-key violation.
// The driver exposes no typed error for it, so the message is matched.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// CreateRecord inserts a new catalog row, failing if the filename is taken.
func (s *Store) CreateRecord(ctx context.Context, record store.FileRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO FILE (FILENAME, FILESIZE, USERNAME, FILEPERMISSION)
		VALUES (?, ?, ?, ?)`,
		record.Filename, record.Size, record.Owner, string(record.Permission))
	if err != nil {
		if isUniqueViolation(err) {
			return store.AlreadyExists("record already exists", record.Filename)
		}
		return ioError("insert record", err)
	}
	return nil
}

// FindRecord returns the catalog row for filename.
func (s *Store) FindRecord(ctx context.Context, filename string) (*store.FileRecord, error) {
	var record store.FileRecord
	var permission string

	err := s.db.QueryRowContext(ctx, `
		SELECT FILENAME, FILESIZE, USERNAME, FILEPERMISSION
		FROM FILE WHERE FILENAME = ?`, filename).
		Scan(&record.Filename, &record.Size, &record.Owner, &permission)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("record not found", filename)
	}
	if err != nil {
		return nil, ioError("select record", err)
	}

	record.Permission = store.Permission(permission)
	return &record, nil
}

// ListRecords returns every catalog row, sorted by filename.
func (s *Store) ListRecords(ctx context.Context) ([]store.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT FILENAME, FILESIZE, USERNAME, FILEPERMISSION
		FROM FILE ORDER BY FILENAME`)
	if err != nil {
		return nil, ioError("select records", err)
	}
	defer rows.Close()

	records := make([]store.FileRecord, 0)
	for rows.Next() {
		var record store.FileRecord
		var permission string
		if err := rows.Scan(&record.Filename, &record.Size, &record.Owner, &permission); err != nil {
			return nil, ioError("scan record", err)
		}
		record.Permission = store.Permission(permission)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("iterate records", err)
	}
	return records, nil
}

// DeleteRecord removes the catalog row for filename.
func (s *Store) DeleteRecord(ctx context.Context, filename string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM FILE WHERE FILENAME = ?`, filename)
	if err != nil {
		return ioError("delete record", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return ioError("delete record", err)
	}
	if affected == 0 {
		return store.NotFound("record not found", filename)
	}
	return nil
}

// UpdateSize overwrites the size column for filename. A keyed UPDATE
// matching no row is a no-op by contract.
func (s *Store) UpdateSize(ctx context.Context, filename string, size int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE FILE SET FILESIZE = ? WHERE FILENAME = ?`, size, filename)
	if err != nil {
		return ioError("update record", err)
	}
	return nil
}

// CreateAccount inserts a new account row, failing if the username is taken.
func (s *Store) CreateAccount(ctx context.Context, username, password string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ACCOUNT (NAME, PASSWORD) VALUES (?, ?)`, username, password)
	if err != nil {
		if isUniqueViolation(err) {
			return store.AlreadyExists("account already exists", username)
		}
		return ioError("insert account", err)
	}
	return nil
}

// GetPassword returns the password stored for username.
func (s *Store) GetPassword(ctx context.Context, username string) (string, error) {
	var password string
	err := s.db.QueryRowContext(ctx, `
		SELECT PASSWORD FROM ACCOUNT WHERE NAME = ?`, username).Scan(&password)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.NotFound("account not found", username)
	}
	if err != nil {
		return "", ioError("select account", err)
	}
	return password, nil
}

// Exists reports whether an account row with the given username exists.
func (s *Store) Exists(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM ACCOUNT WHERE NAME = ?`, username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, ioError("select account", err)
	}
	return true, nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return ioError("ping", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
