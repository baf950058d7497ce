package memory_test

import (
	"testing"

	"github.com/ybecker/catalogd/pkg/store"
	"github.com/ybecker/catalogd/pkg/store/memory"
	storetesting "github.com/ybecker/catalogd/pkg/store/testing"
)

func TestMemoryStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewCatalogStore: func(t *testing.T) store.CatalogStore {
			return memory.NewCatalogStore()
		},
		NewAccountStore: func(t *testing.T) store.AccountStore {
			return memory.NewAccountStore()
		},
	}
	suite.Run(t)
}
