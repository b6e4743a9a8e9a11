package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/cursor"
)

const customerPrefix = "customer:"

// Repository implements simplecustomer.Store on BadgerDB. Records live under
// "customer:<id>" keys holding JSON attributes, so key order is id order.
type Repository struct {
	db    *badger.DB
	codec *cursor.Codec
	owned bool
}

// Option configures a Repository
type Option func(*Repository)

// WithCodec sets the page token codec
func WithCodec(codec *cursor.Codec) Option {
	return func(r *Repository) {
		r.codec = codec
	}
}

// New wraps an open database. The caller keeps ownership of db.
func New(db *badger.DB, opts ...Option) *Repository {
	r := &Repository{
		db:    db,
		codec: cursor.New("badger/customers"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open opens (or creates) a database in dir
func Open(dir string, opts ...Option) (*Repository, error) {
	return open(badger.DefaultOptions(dir), opts...)
}

// OpenInMemory opens a database that keeps everything in memory
func OpenInMemory(opts ...Option) (*Repository, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), opts...)
}

func open(dbOpts badger.Options, opts ...Option) (*Repository, error) {
	dbOpts.Logger = nil

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	r := New(db, opts...)
	r.owned = true
	return r, nil
}

// Close closes the database if the repository opened it
func (r *Repository) Close() error {
	if !r.owned {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) List(ctx context.Context, pageSize int, token simplecustomer.PageToken) (*simplecustomer.Page, error) {
	after, err := r.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	var items []*simplecustomer.Customer
	err = r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = pageSize + 1
		opts.Prefix = []byte(customerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(customerPrefix)
		start := prefix
		if after != "" {
			start = key(after)
		}

		for it.Seek(start); it.ValidForPrefix(prefix) && len(items) <= pageSize; it.Next() {
			item := it.Item()
			id := string(item.Key()[len(customerPrefix):])
			if id == after {
				continue
			}
			customer, err := decode(id, item)
			if err != nil {
				return err
			}
			items = append(items, customer)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	return r.codec.Page(items, pageSize)
}

func (r *Repository) Create(ctx context.Context, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	id := simplecustomer.NewID()
	data, err := encode(attrs)
	if err != nil {
		return nil, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); err == nil {
			return fmt.Errorf("customer %s already exists", id)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key(id), data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	return &simplecustomer.Customer{ID: id, Attributes: attrs.Clone()}, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*simplecustomer.Customer, error) {
	var customer *simplecustomer.Customer

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		customer, err = decode(id, item)
		return err
	})
	if err != nil {
		return nil, notFound(err, "get")
	}
	return customer, nil
}

func (r *Repository) Update(ctx context.Context, id string, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	data, err := encode(attrs)
	if err != nil {
		return nil, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); err != nil {
			return err
		}
		return txn.Set(key(id), data)
	})
	if err != nil {
		return nil, notFound(err, "update")
	}

	return &simplecustomer.Customer{ID: id, Attributes: attrs.Clone()}, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); err != nil {
			return err
		}
		return txn.Delete(key(id))
	})
	if err != nil {
		return notFound(err, "delete")
	}
	return nil
}

func key(id string) []byte {
	return []byte(customerPrefix + id)
}

func encode(attrs simplecustomer.Attributes) ([]byte, error) {
	data, err := json.Marshal(attrs.Clone())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal customer: %w", err)
	}
	return data, nil
}

func decode(id string, item *badger.Item) (*simplecustomer.Customer, error) {
	var attrs simplecustomer.Attributes
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &attrs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal customer %s: %w", id, err)
	}
	if attrs == nil {
		attrs = simplecustomer.Attributes{}
	}
	return &simplecustomer.Customer{ID: id, Attributes: attrs}, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return simplecustomer.ErrCustomerNotFound
	}
	return fmt.Errorf("failed to %s customer: %w", op, err)
}
