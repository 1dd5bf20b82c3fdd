package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/quickpay/internal/domain/checkout"
	"github.com/xenking/quickpay/internal/domain/transaction"
)

type cartLineResponse struct {
	Product  productResponse `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal float64         `json:"subtotal"`
}

type cartResponse struct {
	Lines     []cartLineResponse `json:"lines"`
	Total     float64            `json:"total"`
	ItemCount int                `json:"itemCount"`
}

func toCartResponse(v checkout.CartView) cartResponse {
	lines := make([]cartLineResponse, len(v.Lines))
	for i, l := range v.Lines {
		lines[i] = cartLineResponse{
			Product:  toProductResponse(l.Product),
			Quantity: l.Quantity,
			Subtotal: l.Subtotal.InexactFloat64(),
		}
	}
	return cartResponse{Lines: lines, Total: v.Total.InexactFloat64(), ItemCount: v.ItemCount}
}

func (h *Handler) GetCart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toCartResponse(h.checkout.Cart()))
}

type adjustCartRequest struct {
	ProductID string `json:"productId"`
	Delta     int    `json:"delta"`
}

// AdjustCart adds or removes units of one product. Exceeding stock answers
// 409 with the warning and leaves the cart as it was.
func (h *Handler) AdjustCart(w http.ResponseWriter, r *http.Request) {
	var req adjustCartRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ProductID == "" || req.Delta == 0 {
		h.fail(w, r, badRequest("productId and a non-zero delta are required"))
		return
	}

	v, err := h.checkout.AdjustQuantity(r.Context(), req.ProductID, req.Delta)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(v))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.ClearCart(); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	State   string  `json:"state"`
	Mode    string  `json:"mode,omitempty"`
	Total   float64 `json:"total"`
	Payload string  `json:"payload,omitempty"`
	// QRCode points at the rendered image; empty when rendering failed.
	QRCode string `json:"qrCode,omitempty"`
}

func toSessionResponse(s checkout.Session) sessionResponse {
	resp := sessionResponse{
		State:   string(s.State),
		Mode:    string(s.Mode),
		Total:   s.Total.InexactFloat64(),
		Payload: s.Payload,
	}
	if len(s.QRCode) > 0 {
		resp.QRCode = "/api/checkout/qr.png"
	}
	return resp
}

func (h *Handler) GetCheckout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.checkout.Session()))
}

type openCheckoutRequest struct {
	Mode string `json:"mode"`
}

// OpenCheckout starts a checkout. Without a mode the preselected payment
// mode from the settings is used.
func (h *Handler) OpenCheckout(w http.ResponseWriter, r *http.Request) {
	var req openCheckoutRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	mode := h.state.PaymentMode()
	if req.Mode != "" {
		m, err := transaction.ParseMethod(req.Mode)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		mode = m
	}

	s, err := h.checkout.Open(r.Context(), mode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

type changeRequest struct {
	Received decimal.Decimal `json:"received"`
}

type changeResponse struct {
	Change     float64 `json:"change"`
	Sufficient bool    `json:"sufficient"`
}

// CheckoutChange computes the change for cash received. Insufficient cash
// is reported, not rejected.
func (h *Handler) CheckoutChange(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	change, err := h.checkout.Change(req.Received)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changeResponse{
		Change:     change.InexactFloat64(),
		Sufficient: !change.IsNegative(),
	})
}

// SettleCheckout closes the checkout dialog and records the sale. QR sales
// settle here as well; nothing confirms the transfer arrived.
func (h *Handler) SettleCheckout(w http.ResponseWriter, r *http.Request) {
	t, err := h.checkout.Settle(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toTransactionResponse(t))
}

func (h *Handler) CheckoutQR(w http.ResponseWriter, r *http.Request) {
	s := h.checkout.Session()
	if s.State != checkout.StateAwaiting {
		h.fail(w, r, checkout.ErrNotOpen)
		return
	}
	if len(s.QRCode) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: http.StatusNotFound, Message: "no QR code"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(s.QRCode)
}
