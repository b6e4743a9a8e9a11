package simplecustomer

import "context"

// Service defines the customer CRUD operations
type Service interface {
	ListCustomers(ctx context.Context, req ListCustomersRequest) (*Page, error)
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	UpdateCustomer(ctx context.Context, req UpdateCustomerRequest) (*Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
}
