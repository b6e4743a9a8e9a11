package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/cursor"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	DefaultDatabase   = "customers"
	DefaultCollection = "customers"
)

// document is the stored shape. Attributes are nested so that no user field
// can collide with _id.
type document struct {
	ID         string         `bson:"_id"`
	Attributes map[string]any `bson:"attributes"`
	CreatedAt  time.Time      `bson:"created_at"`
	UpdatedAt  time.Time      `bson:"updated_at"`
}

// Repository implements simplecustomer.Store on a MongoDB collection
type Repository struct {
	client     *mongo.Client
	collection *mongo.Collection
	codec      *cursor.Codec
}

// Option configures a Repository
type Option func(*Repository)

// WithCodec sets the page token codec
func WithCodec(codec *cursor.Codec) Option {
	return func(r *Repository) {
		r.codec = codec
	}
}

// New wraps an existing collection. The caller keeps ownership of the client.
func New(collection *mongo.Collection, opts ...Option) *Repository {
	r := &Repository{collection: collection}
	for _, opt := range opts {
		opt(r)
	}
	if r.codec == nil {
		r.codec = cursor.New("mongo/" + collection.Database().Name() + "." + collection.Name())
	}
	return r
}

// Connect dials MongoDB, verifies the connection and returns a repository that
// owns the client.
func Connect(ctx context.Context, uri, database, collection string, opts ...Option) (*Repository, error) {
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	r := New(client.Database(database).Collection(collection), opts...)
	r.client = client
	return r, nil
}

// Close disconnects the client if the repository owns it
func (r *Repository) Close() error {
	if r.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *Repository) List(ctx context.Context, pageSize int, token simplecustomer.PageToken) (*simplecustomer.Page, error) {
	after, err := r.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	filter := bson.D{}
	if after != "" {
		filter = bson.D{{Key: "_id", Value: bson.D{{Key: "$gt", Value: after}}}}
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(pageSize + 1))

	cur, err := r.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode customers: %w", err)
	}

	items := make([]*simplecustomer.Customer, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.customer())
	}
	return r.codec.Page(items, pageSize)
}

func (r *Repository) Create(ctx context.Context, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	now := time.Now().UTC()
	doc := document{
		ID:         simplecustomer.NewID(),
		Attributes: attrs.Normalize(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("customer %s already exists", doc.ID)
		}
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return doc.customer(), nil
}

func (r *Repository) Get(ctx context.Context, id string) (*simplecustomer.Customer, error) {
	var doc document
	err := r.collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err != nil {
		return nil, notFound(err, "get")
	}
	return doc.customer(), nil
}

func (r *Repository) Update(ctx context.Context, id string, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "attributes", Value: map[string]any(attrs.Normalize())},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}
	updateOpts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc document
	err := r.collection.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update, updateOpts).Decode(&doc)
	if err != nil {
		return nil, notFound(err, "update")
	}
	return doc.customer(), nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if res.DeletedCount == 0 {
		return simplecustomer.ErrCustomerNotFound
	}
	return nil
}

func (d document) customer() *simplecustomer.Customer {
	attrs := simplecustomer.Attributes(d.Attributes)
	if attrs == nil {
		attrs = simplecustomer.Attributes{}
	}
	return &simplecustomer.Customer{ID: d.ID, Attributes: attrs}
}

func notFound(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return simplecustomer.ErrCustomerNotFound
	}
	return fmt.Errorf("failed to %s customer: %w", op, err)
}
