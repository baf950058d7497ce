// Package badger persists catalog records and accounts in BadgerDB, an
// embedded key-value store with WAL-based crash recovery.
//
// One Store serves both the CatalogStore and AccountStore contracts from a
// single database, with the key namespaces documented in keys.go. Records are
// stored as JSON for debuggability; passwords are stored as raw bytes.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/ybecker/catalogd/pkg/store"
)

// Store is a BadgerDB-backed store implementing both store.CatalogStore and
// store.AccountStore.
//
// Thread safety: BadgerDB transactions provide isolation; no additional
// locking is needed.
type Store struct {
	db *badger.DB
}

// New opens (or creates) a Badger database at path.
func New(path string) (*Store, error) {
	// Badger's own logger is chatty at INFO; the server has its own logging.
	opts := badger.DefaultOptions(path).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// NewInMemory opens a Badger database backed by memory only. Used by tests.
func NewInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func ioError(op string, err error) *store.StoreError {
	return &store.StoreError{
		Code:    store.ErrIOError,
		Message: fmt.Sprintf("badger %s: %v", op, err),
	}
}

// CreateRecord stores a new catalog record, failing if the filename is taken.
func (s *Store) CreateRecord(ctx context.Context, record store.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := fileKey(record.Filename)
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return store.AlreadyExists("record already exists", record.Filename)
		}
		if err != badger.ErrKeyNotFound {
			return ioError("get", err)
		}

		data, err := json.Marshal(record)
		if err != nil {
			return ioError("marshal record", err)
		}
		if err := txn.Set(key, data); err != nil {
			return ioError("set", err)
		}
		return nil
	})
}

// FindRecord returns the record stored under filename.
func (s *Store) FindRecord(ctx context.Context, filename string) (*store.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record store.FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(filename))
		if err == badger.ErrKeyNotFound {
			return store.NotFound("record not found", filename)
		}
		if err != nil {
			return ioError("get", err)
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &record); err != nil {
				return ioError("unmarshal record", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecords returns every catalog record, sorted by filename.
func (s *Store) ListRecords(ctx context.Context) ([]store.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]store.FileRecord, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(filePrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record store.FileRecord
				if err := json.Unmarshal(val, &record); err != nil {
					return ioError("unmarshal record", err)
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Badger iterates in key byte order, which for a shared prefix is already
	// filename order. Sorting again is cheap and keeps the contract explicit.
	sort.Slice(records, func(i, j int) bool {
		return records[i].Filename < records[j].Filename
	})
	return records, nil
}

// DeleteRecord removes the record stored under filename.
func (s *Store) DeleteRecord(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := fileKey(filename)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return store.NotFound("record not found", filename)
			}
			return ioError("get", err)
		}
		if err := txn.Delete(key); err != nil {
			return ioError("delete", err)
		}
		return nil
	})
}

// UpdateSize overwrites the size of the record stored under filename.
// Absent records are a no-op.
func (s *Store) UpdateSize(ctx context.Context, filename string, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := fileKey(filename)
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return ioError("get", err)
		}

		var record store.FileRecord
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
		if err != nil {
			return ioError("unmarshal record", err)
		}

		record.Size = size
		data, err := json.Marshal(record)
		if err != nil {
			return ioError("marshal record", err)
		}
		if err := txn.Set(key, data); err != nil {
			return ioError("set", err)
		}
		return nil
	})
}

// CreateAccount stores a new account, failing if the username is taken.
func (s *Store) CreateAccount(ctx context.Context, username, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := accountKey(username)
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return store.AlreadyExists("account already exists", username)
		}
		if err != badger.ErrKeyNotFound {
			return ioError("get", err)
		}
		if err := txn.Set(key, []byte(password)); err != nil {
			return ioError("set", err)
		}
		return nil
	})
}

// GetPassword returns the password stored for username.
func (s *Store) GetPassword(ctx context.Context, username string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var password string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(accountKey(username))
		if err == badger.ErrKeyNotFound {
			return store.NotFound("account not found", username)
		}
		if err != nil {
			return ioError("get", err)
		}
		return item.Value(func(val []byte) error {
			password = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return password, nil
}

// Exists reports whether an account with the given username exists.
func (s *Store) Exists(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	exists := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(accountKey(username))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return ioError("get", err)
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// HealthCheck verifies the database is open and readable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return ioError("healthcheck", fmt.Errorf("database is closed"))
	}
	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("healthcheck"))
		if err != nil && err != badger.ErrKeyNotFound {
			return ioError("healthcheck", err)
		}
		return nil
	})
}

// Close closes the underlying database. The store is unusable afterwards.
func (s *Store) Close() error {
	return s.db.Close()
}
