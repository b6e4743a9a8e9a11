// Package repotest holds the behaviour every simplecustomer.Store must share.
// Store packages run it from their own tests.
package repotest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) simplecustomer.Store

// RunStoreTests exercises CRUD, not-found handling and token paging against stores built by newStore.
func RunStoreTests(t *testing.T, newStore Factory) {
	t.Run("EmptyList", func(t *testing.T) {
		store := newStore(t)

		page, err := store.List(context.Background(), 10, simplecustomer.PageToken{})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.False(t, page.HasMore())
	})

	t.Run("CreateAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.Create(ctx, simplecustomer.Attributes{"name": "Acme", "active": true})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		assert.Equal(t, "Acme", created.Attributes["name"])

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Acme", got.Attributes["name"])
		assert.Equal(t, true, got.Attributes["active"])
		assert.NotContains(t, got.Attributes, simplecustomer.FieldID)
	})

	t.Run("TypedAttributesRoundTrip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		// Decoded request bodies carry json.Number; the service normalizes before the store sees them.
		attrs := simplecustomer.Attributes{
			"name":   "Acme",
			"age":    json.Number("30"),
			"score":  json.Number("1.5"),
			"active": true,
		}.Normalize()

		created, err := store.Create(ctx, attrs)
		require.NoError(t, err)

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assertTyped(t, got.Attributes)

		_, err = store.Update(ctx, created.ID, attrs)
		require.NoError(t, err)
		got, err = store.Get(ctx, created.ID)
		require.NoError(t, err)
		assertTyped(t, got.Attributes)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Get(context.Background(), "does-not-exist")
		assert.ErrorIs(t, err, simplecustomer.ErrCustomerNotFound)

		_, err = store.Get(context.Background(), simplecustomer.NewID())
		assert.ErrorIs(t, err, simplecustomer.ErrCustomerNotFound)
	})

	t.Run("UpdateReplacesAttributes", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.Create(ctx, simplecustomer.Attributes{"name": "Acme", "city": "Oslo"})
		require.NoError(t, err)

		updated, err := store.Update(ctx, created.ID, simplecustomer.Attributes{"name": "Acme Corp"})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", got.Attributes["name"])
		assert.NotContains(t, got.Attributes, "city")
	})

	t.Run("UpdateUnknown", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Update(context.Background(), simplecustomer.NewID(), simplecustomer.Attributes{"name": "x"})
		assert.ErrorIs(t, err, simplecustomer.ErrCustomerNotFound)
	})

	t.Run("DeleteThenGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.Create(ctx, simplecustomer.Attributes{"name": "Acme"})
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, created.ID))

		_, err = store.Get(ctx, created.ID)
		assert.ErrorIs(t, err, simplecustomer.ErrCustomerNotFound)

		err = store.Delete(ctx, created.ID)
		assert.ErrorIs(t, err, simplecustomer.ErrCustomerNotFound)
	})

	t.Run("PagesToExhaustion", func(t *testing.T) {
		store := newStore(t)
		created := seed(t, store, 25)

		ids, pages := drain(t, store, 10)
		assert.Equal(t, created, ids)
		assert.Equal(t, 3, pages)
	})

	t.Run("ExactMultipleHasNoTrailingToken", func(t *testing.T) {
		store := newStore(t)
		created := seed(t, store, 20)

		ids, pages := drain(t, store, 10)
		assert.Equal(t, created, ids)
		assert.Equal(t, 2, pages)
	})

	t.Run("ResumeAfterDeletedMarker", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		created := seed(t, store, 15)

		first, err := store.List(ctx, 10, simplecustomer.PageToken{})
		require.NoError(t, err)
		require.Len(t, first.Items, 10)
		require.True(t, first.HasMore())

		require.NoError(t, store.Delete(ctx, first.Items[9].ID))

		second, err := store.List(ctx, 10, first.NextPageToken)
		require.NoError(t, err)
		assert.False(t, second.HasMore())
		assert.Equal(t, created[10:], idsOf(second.Items))
	})

	t.Run("InvalidToken", func(t *testing.T) {
		store := newStore(t)

		_, err := store.List(context.Background(), 10, simplecustomer.NewPageToken("garbage"))
		assert.ErrorIs(t, err, simplecustomer.ErrInvalidCursor)
	})
}

// assertTyped checks that numbers and booleans survive storage as numbers and booleans.
func assertTyped(t *testing.T, attrs simplecustomer.Attributes) {
	t.Helper()
	assert.Equal(t, "Acme", attrs["name"])
	assert.Equal(t, true, attrs["active"])
	for _, k := range []string{"age", "score"} {
		assert.IsNotType(t, "", attrs[k], "%s stored as a string", k)
		assert.IsNotType(t, json.Number(""), attrs[k], "%s stored as json.Number", k)
	}
	assert.EqualValues(t, int64(30), attrs["age"])
	assert.EqualValues(t, 1.5, attrs["score"])
}

func seed(t *testing.T, store simplecustomer.Store, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c, err := store.Create(context.Background(), simplecustomer.Attributes{"name": fmt.Sprintf("customer-%02d", i)})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	return ids
}

func drain(t *testing.T, store simplecustomer.Store, pageSize int) ([]string, int) {
	t.Helper()
	var (
		ids   []string
		pages int
		token simplecustomer.PageToken
	)
	for {
		page, err := store.List(context.Background(), pageSize, token)
		require.NoError(t, err)
		require.LessOrEqual(t, len(page.Items), pageSize)
		pages++
		ids = append(ids, idsOf(page.Items)...)
		if !page.HasMore() {
			return ids, pages
		}
		token = page.NextPageToken
		require.Less(t, pages, 100, "pagination did not terminate")
	}
}

func idsOf(items []*simplecustomer.Customer) []string {
	out := make([]string, 0, len(items))
	for _, c := range items {
		out = append(out, c.ID)
	}
	return out
}
