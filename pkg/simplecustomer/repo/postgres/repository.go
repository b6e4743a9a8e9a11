package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
	"github.com/tendant/simple-customer/pkg/simplecustomer/cursor"
)

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplecustomer.Store using PostgreSQL. Attributes are
// kept in a JSONB column and listings page by primary key.
type Repository struct {
	db    DBTX
	codec *cursor.Codec
}

// Option configures a Repository
type Option func(*Repository)

// WithCodec sets the page token codec
func WithCodec(codec *cursor.Codec) Option {
	return func(r *Repository) {
		r.codec = codec
	}
}

// New creates a new PostgreSQL repository
func New(db DBTX, opts ...Option) *Repository {
	r := &Repository{
		db:    db,
		codec: cursor.New("postgres/customer"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool, opts ...Option) *Repository {
	return New(pool, opts...)
}

// EnsureSchema creates the customer table when it does not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return r.handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return simplecustomer.ErrCustomerNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("customer already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) List(ctx context.Context, pageSize int, token simplecustomer.PageToken) (*simplecustomer.Page, error) {
	after, err := r.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	if after == "" {
		rows, err = r.db.Query(ctx, `
			SELECT id::text, attributes FROM customer
			ORDER BY id
			LIMIT $1`, pageSize+1)
	} else {
		afterID, perr := uuid.Parse(after)
		if perr != nil {
			return nil, fmt.Errorf("%w: bad resume marker", simplecustomer.ErrInvalidCursor)
		}
		rows, err = r.db.Query(ctx, `
			SELECT id::text, attributes FROM customer
			WHERE id > $1
			ORDER BY id
			LIMIT $2`, afterID, pageSize+1)
	}
	if err != nil {
		return nil, r.handlePostgresError("list customers", err)
	}
	defer rows.Close()

	var items []*simplecustomer.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, r.handlePostgresError("list customers", err)
		}
		items = append(items, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list customers", err)
	}

	return r.codec.Page(items, pageSize)
}

func (r *Repository) Create(ctx context.Context, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	id := uuid.Must(uuid.NewV7())
	row := r.db.QueryRow(ctx, `
		INSERT INTO customer (id, attributes, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		RETURNING id::text, attributes`, id, jsonAttributes(attrs))

	customer, err := scanCustomer(row)
	if err != nil {
		return nil, r.handlePostgresError("create customer", err)
	}
	return customer, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*simplecustomer.Customer, error) {
	customerID, err := uuid.Parse(id)
	if err != nil {
		return nil, simplecustomer.ErrCustomerNotFound
	}

	row := r.db.QueryRow(ctx, `SELECT id::text, attributes FROM customer WHERE id = $1`, customerID)
	customer, err := scanCustomer(row)
	if err != nil {
		return nil, r.handlePostgresError("get customer", err)
	}
	return customer, nil
}

func (r *Repository) Update(ctx context.Context, id string, attrs simplecustomer.Attributes) (*simplecustomer.Customer, error) {
	customerID, err := uuid.Parse(id)
	if err != nil {
		return nil, simplecustomer.ErrCustomerNotFound
	}

	row := r.db.QueryRow(ctx, `
		UPDATE customer SET attributes = $2, updated_at = now()
		WHERE id = $1
		RETURNING id::text, attributes`, customerID, jsonAttributes(attrs))

	customer, err := scanCustomer(row)
	if err != nil {
		return nil, r.handlePostgresError("update customer", err)
	}
	return customer, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	customerID, err := uuid.Parse(id)
	if err != nil {
		return simplecustomer.ErrCustomerNotFound
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM customer WHERE id = $1`, customerID)
	if err != nil {
		return r.handlePostgresError("delete customer", err)
	}
	if tag.RowsAffected() == 0 {
		return simplecustomer.ErrCustomerNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (*simplecustomer.Customer, error) {
	var (
		id    string
		attrs map[string]any
	)
	if err := row.Scan(&id, &attrs); err != nil {
		return nil, err
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &simplecustomer.Customer{ID: id, Attributes: simplecustomer.Attributes(attrs)}, nil
}

// jsonAttributes hands pgx a plain map so it is encoded as a JSON object
func jsonAttributes(attrs simplecustomer.Attributes) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	return map[string]any(attrs)
}
