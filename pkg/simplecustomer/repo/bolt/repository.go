package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/cursor"
	"go.etcd.io/bbolt"
)

const defaultBucket = "customers"

var errNotFound = errors.New("key not found")

// Repository implements simplecustomer.Store on a bbolt file. Each customer is
// a key in one bucket holding JSON attributes; bucket key order is id order.
type Repository struct {
	db     *bbolt.DB
	bucket []byte
	codec  *cursor.Codec
}

// Option configures a Repository
type Option func(*Repository)

// WithCodec sets the page token codec
func WithCodec(codec *cursor.Codec) Option {
	return func(r *Repository) {
		r.codec = codec
	}
}

// WithBucket overrides the bucket name
func WithBucket(name string) Option {
	return func(r *Repository) {
		r.bucket = []byte(name)
	}
}

// Open opens (or creates) the database file at path
func Open(path string, opts ...Option) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory for bolt db: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout:      1 * time.Second,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	r := &Repository{
		db:     db,
		bucket: []byte(defaultBucket),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.codec == nil {
		r.codec = cursor.New("bolt/" + string(r.bucket))
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(r.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", r.bucket, err)
	}

	return r, nil
}

// Close closes the database file
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) List(ctx context.Context, pageSize int, token simplecustomer.PageToken) (*simplecustomer.Page, error) {
	after, err := r.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	var items []*simplecustomer.Customer
	err = r.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(r.bucket).Cursor()

		var k, v []byte
		if after == "" {
			k, v = c.First()
		} else {
			k, v = c.Seek([]byte(after))
			if k != nil && bytes.Equal(k, []byte(after)) {
				k, v = c.Next()
			}
		}

		for ; k != nil && len(items) <= pageSize; k, v = c.Next() {
			customer, err := decode(string(k), v)
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
	data, err := json.Marshal(attrs.Clone())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal customer: %w", err)
	}

	err = r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b.Get([]byte(id)) != nil {
			return fmt.Errorf("customer %s already exists", id)
		}
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	return &simplecustomer.Customer{ID: id, Attributes: attrs.Clone()}, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*simplecustomer.Customer, error) {
	if id == "" {
		return nil, simplecustomer.ErrCustomerNotFound
	}

	var customer *simplecustomer.Customer
	err := r.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(r.bucket).Get([]byte(id))
		if v == nil {
			return errNotFound
		}
		var err error
		customer, err = decode(id, v)
		return err
	})
	if err != nil {
		return nil, notFound(err, "get")
	}
	return customer, nil
}

func (r *Repository) Update(ctx context.Context, id string, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	if id == "" {
		return nil, simplecustomer.ErrCustomerNotFound
	}
	data, err := json.Marshal(attrs.Clone())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal customer: %w", err)
	}

	err = r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b.Get([]byte(id)) == nil {
			return errNotFound
		}
		return b.Put([]byte(id), data)
	})
	if err != nil {
		return nil, notFound(err, "update")
	}

	return &simplecustomer.Customer{ID: id, Attributes: attrs.Clone()}, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return simplecustomer.ErrCustomerNotFound
	}

	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(r.bucket)
		if b.Get([]byte(id)) == nil {
			return errNotFound
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return notFound(err, "delete")
	}
	return nil
}

// decode copies out of v, which is only valid inside the transaction
func decode(id string, v []byte) (*simplecustomer.Customer, error) {
	var attrs simplecustomer.Attributes
	if err := json.Unmarshal(v, &attrs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customer %s: %w", id, err)
	}
	if attrs == nil {
		attrs = simplecustomer.Attributes{}
	}
	return &simplecustomer.Customer{ID: id, Attributes: attrs}, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, errNotFound) {
		return simplecustomer.ErrCustomerNotFound
	}
	return fmt.Errorf("failed to %s customer: %w", op, err)
}
