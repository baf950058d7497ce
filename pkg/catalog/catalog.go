// Package catalog implements the file catalog: record construction, listing,
// and the mutation rules that depend on ownership and permission.
//
// The authorization split is deliberate and mirrors the service this fronts:
// delete authorization lives here, next to the record it inspects, while
// update authorization is decided by the coordinator before it calls the
// unconditional UpdateRecord below.
package catalog

import (
	"context"
	"fmt"

	"github.com/ybecker/catalogd/pkg/store"
)

// Catalog wraps a CatalogStore with the record-level business rules.
type Catalog struct {
	store store.CatalogStore
}

// New creates a Catalog backed by the given store.
//
// Panics if the store is nil (programmer error).
func New(catalogStore store.CatalogStore) *Catalog {
	if catalogStore == nil {
		panic("catalog store cannot be nil")
	}
	return &Catalog{store: catalogStore}
}

// MakeRecord builds a FileRecord from its parts. It is a pure constructor
// and performs no I/O.
func MakeRecord(filename string, size int64, owner string, permission store.Permission) store.FileRecord {
	return store.FileRecord{
		Filename:   filename,
		Size:       size,
		Owner:      owner,
		Permission: permission,
	}
}

// AddRecord inserts a record into the catalog. Duplicate filenames surface
// as a StoreError with ErrAlreadyExists.
func (c *Catalog) AddRecord(ctx context.Context, record store.FileRecord) error {
	if record.Filename == "" {
		return &store.StoreError{Code: store.ErrInvalidArgument, Message: "filename cannot be empty"}
	}
	if !record.Permission.Valid() {
		return &store.StoreError{
			Code:    store.ErrInvalidArgument,
			Message: fmt.Sprintf("unknown permission %q", record.Permission),
			Key:     record.Filename,
		}
	}
	return c.store.CreateRecord(ctx, record)
}

// ListRecords returns every record in the catalog.
func (c *Catalog) ListRecords(ctx context.Context) ([]store.FileRecord, error) {
	return c.store.ListRecords(ctx)
}

// FindRecord returns the record for filename, or nil if it is absent.
// Only infrastructure failures surface as errors.
func (c *Catalog) FindRecord(ctx context.Context, filename string) (*store.FileRecord, error) {
	record, err := c.store.FindRecord(ctx, filename)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// DeleteRecord removes filename on behalf of requester.
//
// The requester may delete when they own the record or when the record is
// shared READ_WRITE. An absent record is simply nothing to delete and
// returns false; it is not a fault.
//
// Returns whether a record was actually removed.
func (c *Catalog) DeleteRecord(ctx context.Context, filename, requester string) (bool, error) {
	record, err := c.FindRecord(ctx, filename)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	if requester != record.Owner && record.Permission != store.PermissionReadWrite {
		return false, nil
	}

	if err := c.store.DeleteRecord(ctx, filename); err != nil {
		if store.IsNotFound(err) {
			// Removed concurrently between the find and the delete.
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdateRecord overwrites the size of filename unconditionally.
//
// There is no authorization here: the coordinator decides whether the
// requester may update before calling this. Updating an absent record is a
// silent no-op.
func (c *Catalog) UpdateRecord(ctx context.Context, filename string, size int64) error {
	return c.store.UpdateSize(ctx, filename, size)
}
