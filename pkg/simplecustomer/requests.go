package simplecustomer

// ListCustomersRequest contains parameters for listing customers
type ListCustomersRequest struct {
	PageToken PageToken
}

// CreateCustomerRequest contains parameters for creating a customer.
// When Image is set it is uploaded first and its URL replaces any imageUrl attribute.
type CreateCustomerRequest struct {
	Attributes Attributes
	Image      *Asset
}

// UpdateCustomerRequest contains parameters for replacing a customer's attributes
type UpdateCustomerRequest struct {
	ID         string
	Attributes Attributes
	Image      *Asset
}
