//go:build integration

// Persistence tests for the Badger store: data written before a close must
// survive a reopen of the same directory.
//
// Run with: go test -tags=integration ./test/integration/badger/...
package badger_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ybecker/catalogd/pkg/store"
	"github.com/ybecker/catalogd/pkg/store/badger"
)

func TestRecordsSurviveReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	ctx := context.Background()

	first, err := badger.New(dir)
	require.NoError(t, err)
	require.NoError(t, first.HealthCheck(ctx))

	record := store.FileRecord{
		Filename:   "persistent.txt",
		Size:       4096,
		Owner:      "alice",
		Permission: store.PermissionReadWrite,
	}
	require.NoError(t, first.CreateRecord(ctx, record))
	require.NoError(t, first.CreateAccount(ctx, "alice", "s3cret"))
	require.NoError(t, first.Close())

	second, err := badger.New(dir)
	require.NoError(t, err)
	defer second.Close()

	found, err := second.FindRecord(ctx, "persistent.txt")
	require.NoError(t, err)
	assert.Equal(t, record, *found)

	password, err := second.GetPassword(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", password)
}

func TestUpdateSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	ctx := context.Background()

	first, err := badger.New(dir)
	require.NoError(t, err)

	require.NoError(t, first.CreateRecord(ctx, store.FileRecord{
		Filename:   "grow.txt",
		Size:       10,
		Owner:      "alice",
		Permission: store.PermissionReadOnly,
	}))
	require.NoError(t, first.UpdateSize(ctx, "grow.txt", 9000))
	require.NoError(t, first.Close())

	second, err := badger.New(dir)
	require.NoError(t, err)
	defer second.Close()

	found, err := second.FindRecord(ctx, "grow.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(9000), found.Size)
}

func TestDeleteSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	ctx := context.Background()

	first, err := badger.New(dir)
	require.NoError(t, err)

	require.NoError(t, first.CreateRecord(ctx, store.FileRecord{
		Filename:   "gone.txt",
		Size:       10,
		Owner:      "alice",
		Permission: store.PermissionReadOnly,
	}))
	require.NoError(t, first.DeleteRecord(ctx, "gone.txt"))
	require.NoError(t, first.Close())

	second, err := badger.New(dir)
	require.NoError(t, err)
	defer second.Close()

	_, err = second.FindRecord(ctx, "gone.txt")
	assert.True(t, store.IsNotFound(err))
}
