package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ybecker/catalogd/pkg/catalog"
	"github.com/ybecker/catalogd/pkg/store"
	"github.com/ybecker/catalogd/pkg/store/memory"
)

func newCatalog() *catalog.Catalog {
	return catalog.New(memory.NewCatalogStore())
}

func TestNewNilStorePanics(t *testing.T) {
	assert.Panics(t, func() {
		catalog.New(nil)
	})
}

func TestMakeRecord(t *testing.T) {
	record := catalog.MakeRecord("notes.txt", 512, "alice", store.PermissionReadWrite)

	assert.Equal(t, "notes.txt", record.Filename)
	assert.Equal(t, int64(512), record.Size)
	assert.Equal(t, "alice", record.Owner)
	assert.Equal(t, store.PermissionReadWrite, record.Permission)
}

func TestAddRecordValidation(t *testing.T) {
	c := newCatalog()
	ctx := context.Background()

	tests := []struct {
		name   string
		record store.FileRecord
	}{
		{
			name:   "empty filename",
			record: catalog.MakeRecord("", 10, "alice", store.PermissionReadOnly),
		},
		{
			name:   "unknown permission",
			record: catalog.MakeRecord("a.txt", 10, "alice", store.Permission("RWX")),
		},
		{
			name:   "empty permission",
			record: catalog.MakeRecord("a.txt", 10, "alice", store.Permission("")),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := c.AddRecord(ctx, tc.record)
			require.Error(t, err)

			storeErr, ok := err.(*store.StoreError)
			require.True(t, ok)
			assert.Equal(t, store.ErrInvalidArgument, storeErr.Code)
		})
	}
}

func TestAddRecordDuplicate(t *testing.T) {
	c := newCatalog()
	ctx := context.Background()

	require.NoError(t, c.AddRecord(ctx, catalog.MakeRecord("a.txt", 10, "alice", store.PermissionReadOnly)))

	err := c.AddRecord(ctx, catalog.MakeRecord("a.txt", 20, "bob", store.PermissionReadWrite))
	assert.True(t, store.IsAlreadyExists(err))
}

func TestFindRecordAbsentIsNil(t *testing.T) {
	c := newCatalog()

	record, err := c.FindRecord(context.Background(), "ghost.txt")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestListRecords(t *testing.T) {
	c := newCatalog()
	ctx := context.Background()

	require.NoError(t, c.AddRecord(ctx, catalog.MakeRecord("b.txt", 2, "bob", store.PermissionReadWrite)))
	require.NoError(t, c.AddRecord(ctx, catalog.MakeRecord("a.txt", 1, "alice", store.PermissionReadOnly)))

	records, err := c.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a.txt", records[0].Filename)
	assert.Equal(t, "b.txt", records[1].Filename)
}

func TestDeleteRecordAuthorization(t *testing.T) {
	tests := []struct {
		name       string
		permission store.Permission
		requester  string
		deleted    bool
	}{
		{"owner deletes own read-only file", store.PermissionReadOnly, "alice", true},
		{"owner deletes own read-write file", store.PermissionReadWrite, "alice", true},
		{"other user deletes read-write file", store.PermissionReadWrite, "bob", true},
		{"other user cannot delete read-only file", store.PermissionReadOnly, "bob", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newCatalog()
			ctx := context.Background()

			require.NoError(t, c.AddRecord(ctx, catalog.MakeRecord("f.txt", 10, "alice", tc.permission)))

			deleted, err := c.DeleteRecord(ctx, "f.txt", tc.requester)
			require.NoError(t, err)
			assert.Equal(t, tc.deleted, deleted)

			record, err := c.FindRecord(ctx, "f.txt")
			require.NoError(t, err)
			if tc.deleted {
				assert.Nil(t, record)
			} else {
				assert.NotNil(t, record)
			}
		})
	}
}

func TestDeleteRecordAbsent(t *testing.T) {
	c := newCatalog()

	// Deleting a record that does not exist is not a fault.
	deleted, err := c.DeleteRecord(context.Background(), "ghost.txt", "alice")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestUpdateRecord(t *testing.T) {
	c := newCatalog()
	ctx := context.Background()

	require.NoError(t, c.AddRecord(ctx, catalog.MakeRecord("f.txt", 10, "alice", store.PermissionReadOnly)))
	require.NoError(t, c.UpdateRecord(ctx, "f.txt", 999))

	record, err := c.FindRecord(ctx, "f.txt")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(999), record.Size)
}

func TestUpdateRecordAbsent(t *testing.T) {
	c := newCatalog()

	// Updating an absent record is a silent no-op.
	require.NoError(t, c.UpdateRecord(context.Background(), "ghost.txt", 999))
}
