package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/cursor"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultCollection is the collection customers are stored in
const DefaultCollection = "Customer"

// Repository implements simplecustomer.Store on a Firestore collection.
// Attributes are stored flat on the document and the document ID is the
// customer ID.
type Repository struct {
	client     *firestore.Client
	collection string
	codec      *cursor.Codec
	owned      bool
}

// Option configures a Repository
type Option func(*Repository)

// WithCollection overrides the collection name
func WithCollection(name string) Option {
	return func(r *Repository) {
		r.collection = name
	}
}

// WithCodec sets the page token codec
func WithCodec(codec *cursor.Codec) Option {
	return func(r *Repository) {
		r.codec = codec
	}
}

// New wraps an existing client. The caller keeps ownership of the client.
func New(client *firestore.Client, opts ...Option) *Repository {
	r := &Repository{client: client, collection: DefaultCollection}
	for _, opt := range opts {
		opt(r)
	}
	if r.codec == nil {
		r.codec = cursor.New("firestore/" + r.collection)
	}
	return r
}

// Connect creates a client for projectID. FIRESTORE_EMULATOR_HOST is honoured
// by the client library.
func Connect(ctx context.Context, projectID string, opts ...Option) (*Repository, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	r := New(client, opts...)
	r.owned = true
	return r, nil
}

// Close closes the client if the repository owns it
func (r *Repository) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

func (r *Repository) List(ctx context.Context, pageSize int, token simplecustomer.PageToken) (*simplecustomer.Page, error) {
	after, err := r.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	q := r.client.Collection(r.collection).OrderBy(firestore.DocumentID, firestore.Asc)
	if after != "" {
		q = q.StartAfter(after)
	}
	iter := q.Limit(pageSize + 1).Documents(ctx)
	defer iter.Stop()

	items := make([]*simplecustomer.Customer, 0, pageSize+1)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list customers: %w", err)
		}
		items = append(items, fromSnapshot(snap))
	}
	return r.codec.Page(items, pageSize)
}

func (r *Repository) Create(ctx context.Context, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	id := simplecustomer.NewID()
	data := toData(attrs)
	if _, err := r.client.Collection(r.collection).Doc(id).Create(ctx, data); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, fmt.Errorf("customer %s already exists", id)
		}
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return &simplecustomer.Customer{ID: id, Attributes: simplecustomer.Attributes(data)}, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*simplecustomer.Customer, error) {
	ref, err := r.doc(id)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, notFound(err, "get")
	}
	return fromSnapshot(snap), nil
}

func (r *Repository) Update(ctx context.Context, id string, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	ref, err := r.doc(id)
	if err != nil {
		return nil, err
	}
	data := toData(attrs)
	err = r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		return tx.Set(ref, data)
	})
	if err != nil {
		return nil, notFound(err, "update")
	}
	return &simplecustomer.Customer{ID: id, Attributes: simplecustomer.Attributes(data)}, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	ref, err := r.doc(id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		return notFound(err, "delete")
	}
	return nil
}

// toData converts attributes to document fields. The client encodes values by
// kind, so json.Number would be written as a string and unsigned integers are
// refused. Numbers are stored as int64 or float64.
func toData(attrs simplecustomer.Attributes) map[string]any {
	return map[string]any(attrs.Normalize())
}

// doc resolves a document reference. IDs that cannot name a document in the
// collection cannot exist.
func (r *Repository) doc(id string) (*firestore.DocumentRef, error) {
	if id == "" || strings.Contains(id, "/") || id == "." || id == ".." {
		return nil, simplecustomer.ErrCustomerNotFound
	}
	ref := r.client.Collection(r.collection).Doc(id)
	if ref == nil {
		return nil, simplecustomer.ErrCustomerNotFound
	}
	return ref, nil
}

func fromSnapshot(snap *firestore.DocumentSnapshot) *simplecustomer.Customer {
	attrs := simplecustomer.Attributes(snap.Data())
	if attrs == nil {
		attrs = simplecustomer.Attributes{}
	}
	return &simplecustomer.Customer{ID: snap.Ref.ID, Attributes: attrs}
}

func notFound(err error, op string) error {
	if status.Code(err) == codes.NotFound {
		return simplecustomer.ErrCustomerNotFound
	}
	return fmt.Errorf("failed to %s customer: %w", op, err)
}
