package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ybecker/catalogd/pkg/store"
)

// RunAccountTests runs the AccountStore conformance tests.
func (suite *StoreTestSuite) RunAccountTests(t *testing.T) {
	t.Run("CreateAndGetPassword", suite.testCreateAndGetPassword)
	t.Run("CreateDuplicate", suite.testCreateDuplicateAccount)
	t.Run("GetPasswordAbsent", suite.testGetPasswordAbsent)
	t.Run("Exists", suite.testExists)
	t.Run("HealthCheck", suite.testAccountHealthCheck)
}

func (suite *StoreTestSuite) testCreateAndGetPassword(t *testing.T) {
	s := suite.NewAccountStore(t)
	ctx := background()

	require.NoError(t, s.CreateAccount(ctx, "alice", "s3cret"))

	password, err := s.GetPassword(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", password)
}

func (suite *StoreTestSuite) testCreateDuplicateAccount(t *testing.T) {
	s := suite.NewAccountStore(t)
	ctx := background()

	require.NoError(t, s.CreateAccount(ctx, "alice", "first"))

	err := s.CreateAccount(ctx, "alice", "second")
	AssertErrorCode(t, store.ErrAlreadyExists, err)

	// The original password must survive the failed insert.
	password, err := s.GetPassword(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "first", password)
}

func (suite *StoreTestSuite) testGetPasswordAbsent(t *testing.T) {
	s := suite.NewAccountStore(t)

	_, err := s.GetPassword(background(), "nobody")
	AssertErrorCode(t, store.ErrNotFound, err)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	s := suite.NewAccountStore(t)
	ctx := background()

	exists, err := s.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.CreateAccount(ctx, "alice", "s3cret"))

	exists, err = s.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func (suite *StoreTestSuite) testAccountHealthCheck(t *testing.T) {
	s := suite.NewAccountStore(t)

	assert.NoError(t, s.HealthCheck(background()))
}
