// Package testing provides a conformance test suite shared by every
// CatalogStore and AccountStore implementation.
//
// Each backend's test file constructs a suite with factories for fresh
// stores and runs the same behavioral tests, so the error contract stays
// identical across memory, badger, sqlite, and s3.
package testing

import (
	"context"
	"testing"

	"github.com/ybecker/catalogd/pkg/store"
)

// StoreTestSuite drives the shared conformance tests.
//
// NewCatalogStore and NewAccountStore must return a fresh, empty store per
// call and register any cleanup with t.Cleanup. Leave NewAccountStore nil
// for backends that only implement the catalog side (e.g. s3).
type StoreTestSuite struct {
	NewCatalogStore func(t *testing.T) store.CatalogStore
	NewAccountStore func(t *testing.T) store.AccountStore
}

// Run executes every applicable conformance test.
func (suite *StoreTestSuite) Run(t *testing.T) {
	if suite.NewCatalogStore != nil {
		t.Run("Catalog", suite.RunCatalogTests)
	}
	if suite.NewAccountStore != nil {
		t.Run("Accounts", suite.RunAccountTests)
	}
}

// testRecord builds a record with sensible defaults for suite tests.
func testRecord(filename string) store.FileRecord {
	return store.FileRecord{
		Filename:   filename,
		Size:       1024,
		Owner:      "alice",
		Permission: store.PermissionReadOnly,
	}
}

// AssertErrorCode fails the test unless err is a StoreError carrying the
// expected code.
func AssertErrorCode(t *testing.T, expected store.ErrorCode, err error) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected store error with code %d, got nil", expected)
	}

	storeErr, ok := err.(*store.StoreError)
	if !ok {
		t.Fatalf("expected *store.StoreError, got %T: %v", err, err)
	}
	if storeErr.Code != expected {
		t.Fatalf("expected error code %d, got %d (%v)", expected, storeErr.Code, err)
	}
}

func background() context.Context {
	return context.Background()
}
