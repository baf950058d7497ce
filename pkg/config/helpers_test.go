package config

import (
	"testing"

	"github.com/ybecker/catalogd/pkg/catalog"
	"github.com/ybecker/catalogd/pkg/coordinator"
	"github.com/ybecker/catalogd/pkg/session"
	"github.com/ybecker/catalogd/pkg/store/memory"
)

func newTestCoordinator(t *testing.T) *coordinator.Coordinator {
	t.Helper()
	return coordinator.New(
		memory.NewAccountStore(),
		catalog.New(memory.NewCatalogStore()),
		session.NewRegistry(),
	)
}
