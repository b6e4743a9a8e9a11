package badger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/repo/badger"
	"github.com/tendant/simple-customer/pkg/simplecustomer/repo/repotest"
)

func TestBadgerRepository(t *testing.T) {
	repotest.RunStoreTests(t, func(t *testing.T) simplecustomer.Store {
		repo, err := badger.OpenInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestBadgerRepository_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := badger.Open(dir)
	require.NoError(t, err)
	created, err := repo.Create(ctx, simplecustomer.Attributes{"name": "Acme"})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	reopened, err := badger.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Attributes["name"])
}
