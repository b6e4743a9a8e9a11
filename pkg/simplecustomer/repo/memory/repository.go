package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/cursor"
)

// Repository implements simplecustomer.Store using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	records map[string]simplecustomer.Attributes
	ids     []string // sorted ascending
	codec   *cursor.Codec
	newID   func() string
}

// Option configures a Repository
type Option func(*Repository)

// WithCodec sets the page token codec
func WithCodec(codec *cursor.Codec) Option {
	return func(r *Repository) {
		r.codec = codec
	}
}

// WithIDGenerator replaces simplecustomer.NewID. Generated ids must sort in
// creation order for listings to follow insertion order.
func WithIDGenerator(fn func() string) Option {
	return func(r *Repository) {
		r.newID = fn
	}
}

// New creates a new in-memory repository
func New(opts ...Option) *Repository {
	r := &Repository{
		records: make(map[string]simplecustomer.Attributes),
		codec:   cursor.New("memory/customers"),
		newID:   simplecustomer.NewID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Len returns the number of stored customers
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

func (r *Repository) List(ctx context.Context, pageSize int, token simplecustomer.PageToken) (*simplecustomer.Page, error) {
	after, err := r.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	start := 0
	if after != "" {
		start = sort.SearchStrings(r.ids, after)
		if start < len(r.ids) && r.ids[start] == after {
			start++
		}
	}

	end := start + pageSize + 1
	if end > len(r.ids) {
		end = len(r.ids)
	}

	items := make([]*simplecustomer.Customer, 0, end-start)
	for _, id := range r.ids[start:end] {
		items = append(items, r.customer(id))
	}

	return r.codec.Page(items, pageSize)
}

func (r *Repository) Create(ctx context.Context, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	if _, exists := r.records[id]; exists {
		return nil, fmt.Errorf("customer %s already exists", id)
	}

	r.records[id] = attrs.Clone()
	idx := sort.SearchStrings(r.ids, id)
	r.ids = append(r.ids, "")
	copy(r.ids[idx+1:], r.ids[idx:])
	r.ids[idx] = id

	return r.customer(id), nil
}

func (r *Repository) Get(ctx context.Context, id string) (*simplecustomer.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.records[id]; !exists {
		return nil, simplecustomer.ErrCustomerNotFound
	}
	return r.customer(id), nil
}

func (r *Repository) Update(ctx context.Context, id string, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; !exists {
		return nil, simplecustomer.ErrCustomerNotFound
	}
	r.records[id] = attrs.Clone()
	return r.customer(id), nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; !exists {
		return simplecustomer.ErrCustomerNotFound
	}
	delete(r.records, id)
	idx := sort.SearchStrings(r.ids, id)
	r.ids = append(r.ids[:idx], r.ids[idx+1:]...)
	return nil
}

// customer returns a copy so callers cannot mutate stored state. Callers hold the lock.
func (r *Repository) customer(id string) *simplecustomer.Customer {
	return &simplecustomer.Customer{
		ID:         id,
		Attributes: r.records[id].Clone(),
	}
}
