package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/quickpay/internal/domain/cart"
	"github.com/xenking/quickpay/internal/domain/checkout"
	"github.com/xenking/quickpay/internal/domain/product"
	"github.com/xenking/quickpay/internal/domain/settings"
	"github.com/xenking/quickpay/internal/domain/transaction"
	"github.com/xenking/quickpay/internal/exchange"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// badRequestError marks malformed request input.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }

// mapError converts domain errors to an HTTP status and a client message.
// Anything unknown is a 500 with a generic message.
func mapError(err error) (int, string) {
	var (
		br       *badRequestError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, br.msg
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.Is(err, transaction.ErrUnknownMethod),
		errors.Is(err, settings.ErrInvalidValue):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, product.ErrImageNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, transaction.ErrEmptyLog):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, cart.ErrStockExceeded):
		var se *cart.StockExceededError
		if errors.As(err, &se) {
			return http.StatusConflict, se.Error()
		}
		return http.StatusConflict, err.Error()
	case errors.Is(err, cart.ErrProductDisabled),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrCheckoutOpen),
		errors.Is(err, checkout.ErrNotOpen):
		return http.StatusConflict, err.Error()
	case errors.Is(err, product.ErrInvalid),
		errors.Is(err, exchange.ErrMalformed):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON request body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}
