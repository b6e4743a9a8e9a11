package simplecustomer_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/repo/memory"
)

// countingStore records write calls on top of the memory repository.
type countingStore struct {
	*memory.Repository
	mu      sync.Mutex
	creates int
	updates int
	failOn  error
	written simplecustomer.Attributes
}

func newCountingStore() *countingStore {
	return &countingStore{Repository: memory.New()}
}

func (s *countingStore) Create(ctx context.Context, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	s.mu.Lock()
	s.creates++
	s.written = attrs
	fail := s.failOn
	s.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return s.Repository.Create(ctx, attrs)
}

func (s *countingStore) Update(ctx context.Context, id string, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	s.mu.Lock()
	s.updates++
	s.written = attrs
	fail := s.failOn
	s.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return s.Repository.Update(ctx, id, attrs)
}

// nilPageStore answers List with neither a page nor an error.
type nilPageStore struct {
	*memory.Repository
}

func (nilPageStore) List(ctx context.Context, pageSize int, token simplecustomer.PageToken) (*simplecustomer.Page, error) {
	return nil, nil
}

type fakeUploader struct {
	mu    sync.Mutex
	calls int
	url   string
	err   error
	seen  []string
}

func (u *fakeUploader) Upload(ctx context.Context, asset *simplecustomer.Asset) (*simplecustomer.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if u.err != nil {
		return nil, u.err
	}
	data, _ := io.ReadAll(asset.Body)
	u.seen = append(u.seen, string(data))
	return &simplecustomer.UploadResult{ObjectKey: "k/" + asset.FileName, PublicURL: u.url}, nil
}

func image() *simplecustomer.Asset {
	return &simplecustomer.Asset{FileName: "logo.png", ContentType: "image/png", Body: strings.NewReader("png")}
}

func newService(t *testing.T, store simplecustomer.Store, uploader simplecustomer.Uploader) simplecustomer.Service {
	t.Helper()
	opts := []simplecustomer.Option{simplecustomer.WithStore(store)}
	if uploader != nil {
		opts = append(opts, simplecustomer.WithUploader(uploader))
	}
	svc, err := simplecustomer.New(opts...)
	require.NoError(t, err)
	return svc
}

func TestNew(t *testing.T) {
	_, err := simplecustomer.New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store is required")

	_, err = simplecustomer.New(simplecustomer.WithStore(memory.New()), simplecustomer.WithPageSize(0))
	require.Error(t, err)
}

func TestListCustomers(t *testing.T) {
	ctx := context.Background()

	t.Run("empty collection", func(t *testing.T) {
		svc := newService(t, memory.New(), nil)
		page, err := svc.ListCustomers(ctx, simplecustomer.ListCustomersRequest{})
		require.NoError(t, err)
		assert.NotNil(t, page.Items)
		assert.Empty(t, page.Items)
		assert.False(t, page.HasMore())
	})

	t.Run("pages to exhaustion", func(t *testing.T) {
		svc := newService(t, memory.New(), nil)
		const n = 23
		want := map[string]bool{}
		for i := 0; i < n; i++ {
			c, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{
				Attributes: simplecustomer.Attributes{"name": fmt.Sprintf("c%d", i)},
			})
			require.NoError(t, err)
			want[c.ID] = true
		}

		seen := map[string]bool{}
		var token simplecustomer.PageToken
		pages := 0
		for {
			page, err := svc.ListCustomers(ctx, simplecustomer.ListCustomersRequest{PageToken: token})
			require.NoError(t, err)
			pages++
			assert.LessOrEqual(t, len(page.Items), simplecustomer.DefaultPageSize)
			for _, c := range page.Items {
				assert.False(t, seen[c.ID], "duplicate %s", c.ID)
				seen[c.ID] = true
			}
			if !page.HasMore() {
				break
			}
			token = page.NextPageToken
		}
		assert.Equal(t, want, seen)
		assert.Equal(t, 3, pages)
	})

	t.Run("page size override", func(t *testing.T) {
		store := memory.New()
		for i := 0; i < 3; i++ {
			_, err := store.Create(ctx, simplecustomer.Attributes{"n": i})
			require.NoError(t, err)
		}
		svc, err := simplecustomer.New(simplecustomer.WithStore(store), simplecustomer.WithPageSize(2))
		require.NoError(t, err)

		page, err := svc.ListCustomers(ctx, simplecustomer.ListCustomersRequest{})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.True(t, page.HasMore())
	})

	t.Run("store returns no page", func(t *testing.T) {
		svc := newService(t, nilPageStore{Repository: memory.New()}, nil)
		page, err := svc.ListCustomers(ctx, simplecustomer.ListCustomersRequest{})
		assert.Nil(t, page)
		assert.ErrorIs(t, err, simplecustomer.ErrStoreFailure)
	})

	t.Run("invalid token", func(t *testing.T) {
		svc := newService(t, memory.New(), nil)
		_, err := svc.ListCustomers(ctx, simplecustomer.ListCustomersRequest{PageToken: simplecustomer.NewPageToken("bogus")})
		assert.ErrorIs(t, err, simplecustomer.ErrInvalidCursor)
		assert.NotErrorIs(t, err, simplecustomer.ErrStoreFailure)
	})
}

func TestCreateCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("without image", func(t *testing.T) {
		uploader := &fakeUploader{url: "https://cdn/x.png"}
		svc := newService(t, memory.New(), uploader)

		c, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: simplecustomer.Attributes{"name": "Acme"}})
		require.NoError(t, err)
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, "Acme", c.Attributes["name"])
		assert.Equal(t, 0, uploader.calls)
		assert.Empty(t, c.ImageURL())
	})

	t.Run("upload failure writes nothing", func(t *testing.T) {
		store := newCountingStore()
		uploader := &fakeUploader{err: errors.New("bucket unavailable")}
		svc := newService(t, store, uploader)

		_, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{
			Attributes: simplecustomer.Attributes{"name": "Acme"},
			Image:      image(),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, simplecustomer.ErrUploadFailed)
		assert.Equal(t, 0, store.creates)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("uploaded url overrides payload", func(t *testing.T) {
		uploader := &fakeUploader{url: "https://cdn/real.png"}
		svc := newService(t, memory.New(), uploader)

		c, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{
			Attributes: simplecustomer.Attributes{"name": "Acme", "imageUrl": "https://evil/fake.png"},
			Image:      image(),
		})
		require.NoError(t, err)
		assert.Equal(t, "https://cdn/real.png", c.ImageURL())
		assert.Equal(t, []string{"png"}, uploader.seen)

		stored, err := svc.GetCustomer(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn/real.png", stored.ImageURL())
	})

	t.Run("caller attributes are not mutated", func(t *testing.T) {
		svc := newService(t, memory.New(), &fakeUploader{url: "https://cdn/real.png"})
		attrs := simplecustomer.Attributes{"name": "Acme"}
		_, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: attrs, Image: image()})
		require.NoError(t, err)
		assert.NotContains(t, attrs, "imageUrl")
	})

	t.Run("no uploader configured", func(t *testing.T) {
		store := newCountingStore()
		svc := newService(t, store, nil)
		_, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: simplecustomer.Attributes{}, Image: image()})
		assert.ErrorIs(t, err, simplecustomer.ErrUploadFailed)
		assert.Equal(t, 0, store.creates)
	})

	t.Run("empty public url", func(t *testing.T) {
		store := newCountingStore()
		svc := newService(t, store, &fakeUploader{})
		_, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: simplecustomer.Attributes{}, Image: image()})
		assert.ErrorIs(t, err, simplecustomer.ErrUploadFailed)
		assert.Equal(t, 0, store.creates)
	})

	t.Run("store failure after upload", func(t *testing.T) {
		store := newCountingStore()
		store.failOn = errors.New("disk full")
		svc := newService(t, store, &fakeUploader{url: "https://cdn/x.png"})

		_, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: simplecustomer.Attributes{"name": "Acme"}, Image: image()})
		require.Error(t, err)
		assert.ErrorIs(t, err, simplecustomer.ErrStoreFailure)
		assert.NotErrorIs(t, err, simplecustomer.ErrUploadFailed)
	})

	t.Run("numbers reach the store normalized", func(t *testing.T) {
		store := newCountingStore()
		svc := newService(t, store, nil)

		attrs := simplecustomer.Attributes{"name": "Acme", "age": json.Number("30"), "score": json.Number("1.5"), "seats": uint(4)}
		_, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: attrs})
		require.NoError(t, err)
		assert.Equal(t, int64(30), store.written["age"])
		assert.Equal(t, 1.5, store.written["score"])
		assert.Equal(t, int64(4), store.written["seats"])
		assert.Equal(t, json.Number("30"), attrs["age"])
	})

	t.Run("invalid payloads", func(t *testing.T) {
		tests := []struct {
			name  string
			attrs simplecustomer.Attributes
		}{
			{"id supplied", simplecustomer.Attributes{"id": "123"}},
			{"nested object", simplecustomer.Attributes{"address": map[string]any{"city": "Oslo"}}},
			{"array", simplecustomer.Attributes{"tags": []any{"a"}}},
			{"empty name", simplecustomer.Attributes{"": "x"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				store := newCountingStore()
				uploader := &fakeUploader{url: "https://cdn/x.png"}
				svc := newService(t, store, uploader)
				_, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: tt.attrs, Image: image()})
				assert.ErrorIs(t, err, simplecustomer.ErrInvalidCustomer)
				assert.Equal(t, 0, store.creates)
				assert.Equal(t, 0, uploader.calls)
			})
		}
	})
}

func TestUpdateCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("missing id uploads nothing", func(t *testing.T) {
		store := newCountingStore()
		uploader := &fakeUploader{url: "https://cdn/x.png"}
		svc := newService(t, store, uploader)

		_, err := svc.UpdateCustomer(ctx, simplecustomer.UpdateCustomerRequest{
			ID:         simplecustomer.NewID(),
			Attributes: simplecustomer.Attributes{"name": "x"},
			Image:      image(),
		})
		assert.ErrorIs(t, err, simplecustomer.ErrCustomerNotFound)
		assert.Equal(t, 0, uploader.calls)
		assert.Equal(t, 0, store.updates)
	})

	t.Run("replaces attributes", func(t *testing.T) {
		svc := newService(t, memory.New(), nil)
		c, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: simplecustomer.Attributes{"name": "Acme", "city": "Oslo"}})
		require.NoError(t, err)

		updated, err := svc.UpdateCustomer(ctx, simplecustomer.UpdateCustomerRequest{ID: c.ID, Attributes: simplecustomer.Attributes{"name": "Acme Corp"}})
		require.NoError(t, err)
		assert.Equal(t, c.ID, updated.ID)
		assert.Equal(t, simplecustomer.Attributes{"name": "Acme Corp"}, updated.Attributes)
	})

	t.Run("with image", func(t *testing.T) {
		uploader := &fakeUploader{url: "https://cdn/new.png"}
		svc := newService(t, memory.New(), uploader)
		c, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: simplecustomer.Attributes{"name": "Acme"}})
		require.NoError(t, err)

		updated, err := svc.UpdateCustomer(ctx, simplecustomer.UpdateCustomerRequest{ID: c.ID, Attributes: simplecustomer.Attributes{"name": "Acme"}, Image: image()})
		require.NoError(t, err)
		assert.Equal(t, "https://cdn/new.png", updated.ImageURL())
		assert.Equal(t, 1, uploader.calls)
	})

	t.Run("upload failure leaves record untouched", func(t *testing.T) {
		store := newCountingStore()
		svc := newService(t, store, &fakeUploader{err: &simplecustomer.UploadError{Backend: "s3", Code: "AccessDenied", Err: errors.New("denied")}})
		c, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: simplecustomer.Attributes{"name": "Acme"}})
		require.NoError(t, err)

		_, err = svc.UpdateCustomer(ctx, simplecustomer.UpdateCustomerRequest{ID: c.ID, Attributes: simplecustomer.Attributes{"name": "Changed"}, Image: image()})
		var uploadErr *simplecustomer.UploadError
		require.ErrorAs(t, err, &uploadErr)
		assert.Equal(t, "AccessDenied", uploadErr.Code)
		assert.Equal(t, 0, store.updates)

		stored, err := svc.GetCustomer(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme", stored.Attributes["name"])
	})
}

func TestDeleteCustomer(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New(), nil)

	c, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: simplecustomer.Attributes{"name": "Acme"}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCustomer(ctx, c.ID))

	_, err = svc.GetCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, simplecustomer.ErrCustomerNotFound)

	err = svc.DeleteCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, simplecustomer.ErrCustomerNotFound)

	var customerErr *simplecustomer.CustomerError
	require.ErrorAs(t, err, &customerErr)
	assert.Equal(t, "delete", customerErr.Op)
	assert.Equal(t, c.ID, customerErr.ID)
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New(), nil)

	c, err := svc.CreateCustomer(ctx, simplecustomer.CreateCustomerRequest{Attributes: simplecustomer.Attributes{"name": "Acme"}})
	require.NoError(t, err)

	page, err := svc.ListCustomers(ctx, simplecustomer.ListCustomersRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, c.ID, page.Items[0].ID)
	assert.Equal(t, "Acme", page.Items[0].Attributes["name"])
	assert.True(t, page.NextPageToken.IsZero())

	require.NoError(t, svc.DeleteCustomer(ctx, c.ID))
	_, err = svc.GetCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, simplecustomer.ErrCustomerNotFound)
}
