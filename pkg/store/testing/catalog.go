package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ybecker/catalogd/pkg/store"
)

// RunCatalogTests runs the CatalogStore conformance tests.
func (suite *StoreTestSuite) RunCatalogTests(t *testing.T) {
	t.Run("CreateAndFind", suite.testCreateAndFind)
	t.Run("CreateDuplicate", suite.testCreateDuplicate)
	t.Run("FindAbsent", suite.testFindAbsent)
	t.Run("List", suite.testList)
	t.Run("ListEmpty", suite.testListEmpty)
	t.Run("Delete", suite.testDelete)
	t.Run("DeleteAbsent", suite.testDeleteAbsent)
	t.Run("UpdateSize", suite.testUpdateSize)
	t.Run("UpdateSizeAbsent", suite.testUpdateSizeAbsent)
	t.Run("HealthCheck", suite.testCatalogHealthCheck)
}

func (suite *StoreTestSuite) testCreateAndFind(t *testing.T) {
	s := suite.NewCatalogStore(t)
	ctx := background()

	record := store.FileRecord{
		Filename:   "report.txt",
		Size:       2048,
		Owner:      "alice",
		Permission: store.PermissionReadWrite,
	}
	require.NoError(t, s.CreateRecord(ctx, record))

	found, err := s.FindRecord(ctx, "report.txt")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, record, *found)
}

func (suite *StoreTestSuite) testCreateDuplicate(t *testing.T) {
	s := suite.NewCatalogStore(t)
	ctx := background()

	require.NoError(t, s.CreateRecord(ctx, testRecord("dup.txt")))

	err := s.CreateRecord(ctx, testRecord("dup.txt"))
	AssertErrorCode(t, store.ErrAlreadyExists, err)

	// The original record must survive the failed insert.
	found, err := s.FindRecord(ctx, "dup.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), found.Size)
}

func (suite *StoreTestSuite) testFindAbsent(t *testing.T) {
	s := suite.NewCatalogStore(t)

	_, err := s.FindRecord(background(), "ghost.txt")
	AssertErrorCode(t, store.ErrNotFound, err)
}

func (suite *StoreTestSuite) testList(t *testing.T) {
	s := suite.NewCatalogStore(t)
	ctx := background()

	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		require.NoError(t, s.CreateRecord(ctx, testRecord(name)))
	}

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Listings are sorted by filename regardless of insertion order.
	assert.Equal(t, "a.txt", records[0].Filename)
	assert.Equal(t, "b.txt", records[1].Filename)
	assert.Equal(t, "c.txt", records[2].Filename)
}

func (suite *StoreTestSuite) testListEmpty(t *testing.T) {
	s := suite.NewCatalogStore(t)

	records, err := s.ListRecords(background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	s := suite.NewCatalogStore(t)
	ctx := background()

	require.NoError(t, s.CreateRecord(ctx, testRecord("gone.txt")))
	require.NoError(t, s.DeleteRecord(ctx, "gone.txt"))

	_, err := s.FindRecord(ctx, "gone.txt")
	AssertErrorCode(t, store.ErrNotFound, err)
}

func (suite *StoreTestSuite) testDeleteAbsent(t *testing.T) {
	s := suite.NewCatalogStore(t)

	err := s.DeleteRecord(background(), "ghost.txt")
	AssertErrorCode(t, store.ErrNotFound, err)
}

func (suite *StoreTestSuite) testUpdateSize(t *testing.T) {
	s := suite.NewCatalogStore(t)
	ctx := background()

	require.NoError(t, s.CreateRecord(ctx, testRecord("grow.txt")))
	require.NoError(t, s.UpdateSize(ctx, "grow.txt", 9000))

	found, err := s.FindRecord(ctx, "grow.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(9000), found.Size)

	// Everything but the size is untouched.
	assert.Equal(t, "alice", found.Owner)
	assert.Equal(t, store.PermissionReadOnly, found.Permission)
}

func (suite *StoreTestSuite) testUpdateSizeAbsent(t *testing.T) {
	s := suite.NewCatalogStore(t)

	// A keyed update matching no record is a no-op, not an error.
	require.NoError(t, s.UpdateSize(background(), "ghost.txt", 9000))
}

func (suite *StoreTestSuite) testCatalogHealthCheck(t *testing.T) {
	s := suite.NewCatalogStore(t)

	assert.NoError(t, s.HealthCheck(background()))
}
