// Package memory provides in-memory catalog and account stores.
//
// Both stores are mutex-guarded maps with no persistence. They are the
// default backends for development and the workhorses of the test suites.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ybecker/catalogd/pkg/store"
)

// CatalogStore is an in-memory store.CatalogStore.
//
// Thread safety: all operations are protected by a single read-write mutex.
type CatalogStore struct {
	mu      sync.RWMutex
	records map[string]store.FileRecord
}

// NewCatalogStore creates an empty in-memory catalog store.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		records: make(map[string]store.FileRecord),
	}
}

func (s *CatalogStore) CreateRecord(ctx context.Context, record store.FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.Filename]; exists {
		return store.AlreadyExists("record already exists", record.Filename)
	}
	s.records[record.Filename] = record
	return nil
}

func (s *CatalogStore) FindRecord(ctx context.Context, filename string) (*store.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[filename]
	if !exists {
		return nil, store.NotFound("record not found", filename)
	}
	return &record, nil
}

func (s *CatalogStore) ListRecords(ctx context.Context) ([]store.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]store.FileRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}

	// Map iteration order is random; a stable listing is friendlier to
	// clients and tests alike.
	sort.Slice(records, func(i, j int) bool {
		return records[i].Filename < records[j].Filename
	})

	return records, nil
}

func (s *CatalogStore) DeleteRecord(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[filename]; !exists {
		return store.NotFound("record not found", filename)
	}
	delete(s.records, filename)
	return nil
}

func (s *CatalogStore) UpdateSize(ctx context.Context, filename string, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[filename]
	if !exists {
		// Keyed update matching nothing: no-op by contract.
		return nil
	}
	record.Size = size
	s.records[filename] = record
	return nil
}

func (s *CatalogStore) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func (s *CatalogStore) Close() error {
	return nil
}

// AccountStore is an in-memory store.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]string
}

// NewAccountStore creates an empty in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]string),
	}
}

func (s *AccountStore) CreateAccount(ctx context.Context, username, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[username]; exists {
		return store.AlreadyExists("account already exists", username)
	}
	s.accounts[username] = password
	return nil
}

func (s *AccountStore) GetPassword(ctx context.Context, username string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	password, exists := s.accounts[username]
	if !exists {
		return "", store.NotFound("account not found", username)
	}
	return password, nil
}

func (s *AccountStore) Exists(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.accounts[username]
	return exists, nil
}

func (s *AccountStore) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func (s *AccountStore) Close() error {
	return nil
}
