package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/simple-customer/pkg/simplecustomer"
)

// statusFor maps a service error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, errRequestTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, simplecustomer.ErrCustomerNotFound):
		return http.StatusNotFound
	case errors.Is(err, simplecustomer.ErrInvalidCursor),
		errors.Is(err, simplecustomer.ErrInvalidCustomer):
		return http.StatusBadRequest
	case errors.Is(err, simplecustomer.ErrUploadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *CustomerHandler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error, attrs ...any) {
	status := statusFor(err)

	attrs = append(attrs, "status", status, "error", err)
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		attrs = append(attrs, "request_id", reqID)
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, attrs...)
	} else {
		h.logger.WarnContext(r.Context(), msg, attrs...)
	}

	text := err.Error()
	if status == http.StatusInternalServerError {
		text = http.StatusText(status)
	}
	http.Error(w, text, status)
}
