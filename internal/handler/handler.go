// Package handler exposes the point-of-sale operations as a JSON HTTP API.
package handler

import (
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xenking/quickpay/internal/domain/checkout"
	"github.com/xenking/quickpay/internal/domain/product"
	"github.com/xenking/quickpay/internal/domain/settings"
	"github.com/xenking/quickpay/internal/domain/transaction"
	"github.com/xenking/quickpay/pkg/httpmiddleware"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request body limits.
const (
	DefaultMaxUploadBytes int64 = 5 << 20
	DefaultMaxImportBytes int64 = 50 << 20
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// Location is used for day boundaries in history filters and for
	// export timestamps. Defaults to UTC.
	Location *time.Location
	// MaxUploadBytes caps product image uploads.
	MaxUploadBytes int64
	// MaxImportBytes caps product import files.
	MaxImportBytes int64
	// Heavy wraps the export, import and backup endpoints, typically with a
	// throttle. Nil leaves them unwrapped.
	Heavy httpmiddleware.Middleware
	// Now overrides the clock used for the daily income default.
	Now func() time.Time
	// Backup streams a store snapshot for GET /api/backup. Nil leaves the
	// route unregistered.
	Backup func(w io.Writer) (int64, error)
}

// Handler serves the /api routes over the catalog, checkout, history and
// preference services.
type Handler struct {
	catalog  *product.Catalog
	checkout *checkout.Service
	history  *transaction.Log
	state    *settings.State

	loc       *time.Location
	maxUpload int64
	maxImport int64
	heavy     httpmiddleware.Middleware
	now       func() time.Time
	backup    func(w io.Writer) (int64, error)
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	catalog *product.Catalog,
	checkoutService *checkout.Service,
	history *transaction.Log,
	state *settings.State,
) *Handler {
	h := &Handler{
		catalog:   catalog,
		checkout:  checkoutService,
		history:   history,
		state:     state,
		loc:       cfg.Location,
		maxUpload: cfg.MaxUploadBytes,
		maxImport: cfg.MaxImportBytes,
		heavy:     cfg.Heavy,
		now:       cfg.Now,
		backup:    cfg.Backup,
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	if h.maxUpload <= 0 {
		h.maxUpload = DefaultMaxUploadBytes
	}
	if h.maxImport <= 0 {
		h.maxImport = DefaultMaxImportBytes
	}
	if h.heavy == nil {
		h.heavy = func(next http.Handler) http.Handler { return next }
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/visible", h.ListVisibleProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("POST /api/products", h.CreateProduct)
	mux.HandleFunc("PUT /api/products/{id}", h.UpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.DeleteProduct)
	mux.HandleFunc("PUT /api/products/{id}/image", h.UploadProductImage)
	mux.HandleFunc("GET /api/images/{key}", h.GetImage)
	mux.Handle("GET /api/products/export", h.heavy(http.HandlerFunc(h.ExportProducts)))
	mux.Handle("POST /api/products/import", h.heavy(http.HandlerFunc(h.ImportProducts)))
	mux.HandleFunc("GET /api/icons", h.ListIcons)

	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/items", h.AdjustCart)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)

	mux.HandleFunc("GET /api/checkout", h.GetCheckout)
	mux.HandleFunc("POST /api/checkout", h.OpenCheckout)
	mux.HandleFunc("POST /api/checkout/change", h.CheckoutChange)
	mux.HandleFunc("POST /api/checkout/settle", h.SettleCheckout)
	mux.HandleFunc("GET /api/checkout/qr.png", h.CheckoutQR)

	mux.HandleFunc("GET /api/transactions", h.ListTransactions)
	mux.HandleFunc("DELETE /api/transactions/latest", h.DeleteLatestTransaction)
	mux.HandleFunc("POST /api/transactions/delete", h.DeleteTransactions)
	mux.HandleFunc("DELETE /api/transactions", h.ClearTransactions)
	mux.Handle("GET /api/transactions/export", h.heavy(http.HandlerFunc(h.ExportTransactions)))

	mux.HandleFunc("GET /api/settings", h.GetSettings)
	mux.HandleFunc("PUT /api/settings/payment-mode", h.SetPaymentMode)
	mux.HandleFunc("PUT /api/settings/column-view", h.SetColumnView)
	mux.HandleFunc("PUT /api/settings/accordion", h.SetAccordion)
	mux.HandleFunc("PUT /api/settings/message", h.SetMessage)
	mux.HandleFunc("PUT /api/settings/banking-details", h.SetBankingDetails)

	if h.backup != nil {
		mux.Handle("GET /api/backup", h.heavy(http.HandlerFunc(h.Backup)))
	}
}
