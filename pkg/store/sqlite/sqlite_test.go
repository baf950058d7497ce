package sqlite_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ybecker/catalogd/pkg/store"
	"github.com/ybecker/catalogd/pkg/store/sqlite"
	storetesting "github.com/ybecker/catalogd/pkg/store/testing"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.New(sqlite.InMemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestSQLiteStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewCatalogStore: func(t *testing.T) store.CatalogStore {
			return newStore(t)
		},
		NewAccountStore: func(t *testing.T) store.AccountStore {
			return newStore(t)
		},
	}
	suite.Run(t)
}

func TestSQLiteEmptyPath(t *testing.T) {
	_, err := sqlite.New("  ")
	require.Error(t, err)
}

func TestSQLiteSchemaIsIdempotent(t *testing.T) {
	dbPath := t.TempDir() + "/catalog.db"

	first, err := sqlite.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Reopening the same file must not fail on existing tables.
	second, err := sqlite.New(dbPath)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
