package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
)

// DefaultMaxUploadSize is the largest accepted image, 5 MB
const DefaultMaxUploadSize = 5 << 20

// CustomerHandler handles HTTP requests for customers
type CustomerHandler struct {
	service       simplecustomer.Service
	maxUploadSize int64
	logger        *slog.Logger
}

// HandlerOption configures a CustomerHandler
type HandlerOption func(*CustomerHandler)

// WithMaxUploadSize limits the size of an uploaded image
func WithMaxUploadSize(size int64) HandlerOption {
	return func(h *CustomerHandler) {
		if size > 0 {
			h.maxUploadSize = size
		}
	}
}

// WithLogger sets the logger used for failed requests
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *CustomerHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(service simplecustomer.Service, opts ...HandlerOption) *CustomerHandler {
	h := &CustomerHandler{
		service:       service,
		maxUploadSize: DefaultMaxUploadSize,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the routes for customers
func (h *CustomerHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListCustomers)
	r.Post("/", h.CreateCustomer)
	r.Get("/{id}", h.GetCustomer)
	r.Put("/{id}", h.UpdateCustomer)
	r.Delete("/{id}", h.DeleteCustomer)

	return r
}

// ListCustomers returns one page of customers. The pageToken query parameter
// continues a previous listing.
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	req := simplecustomer.ListCustomersRequest{
		PageToken: simplecustomer.NewPageToken(r.URL.Query().Get("pageToken")),
	}

	page, err := h.service.ListCustomers(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "Failed to list customers", err)
		return
	}

	render.JSON(w, r, page)
}

// CreateCustomer creates a customer from a JSON, urlencoded or multipart body.
// A multipart file in the "image" field is uploaded and linked as imageUrl.
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		h.writeError(w, r, "Invalid customer body", err)
		return
	}
	defer body.Close()

	customer, err := h.service.CreateCustomer(r.Context(), simplecustomer.CreateCustomerRequest{
		Attributes: body.attrs,
		Image:      body.image,
	})
	if err != nil {
		h.writeError(w, r, "Failed to create customer", err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer created", "customer_id", customer.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, customer)
}

// GetCustomer retrieves a customer by ID
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get customer", err, "customer_id", id)
		return
	}

	render.JSON(w, r, customer)
}

// UpdateCustomer replaces a customer's attributes
func (h *CustomerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := h.readBody(w, r)
	if err != nil {
		h.writeError(w, r, "Invalid customer body", err, "customer_id", id)
		return
	}
	defer body.Close()

	customer, err := h.service.UpdateCustomer(r.Context(), simplecustomer.UpdateCustomerRequest{
		ID:         id,
		Attributes: body.attrs,
		Image:      body.image,
	})
	if err != nil {
		h.writeError(w, r, "Failed to update customer", err, "customer_id", id)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer updated", "customer_id", id)
	render.JSON(w, r, customer)
}

// DeleteCustomer deletes a customer by ID and answers with a plain "OK"
func (h *CustomerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		h.writeError(w, r, "Failed to delete customer", err, "customer_id", id)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer deleted", "customer_id", id)
	render.PlainText(w, r, "OK")
}
