package firestore_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/repo/firestore"
	"github.com/tendant/simple-customer/pkg/simplecustomer/repo/repotest"
)

func TestFirestoreRepository(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	n := 0
	repotest.RunStoreTests(t, func(t *testing.T) simplecustomer.Store {
		n++
		collection := fmt.Sprintf("Customer_%d_%d", time.Now().UnixNano(), n)
		repo, err := firestore.Connect(context.Background(), "simple-customer-test", firestore.WithCollection(collection))
		require.NoError(t, err)
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}
