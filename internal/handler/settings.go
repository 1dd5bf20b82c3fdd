package handler

import (
	"net/http"

	"github.com/xenking/quickpay/internal/domain/payment"
	"github.com/xenking/quickpay/internal/domain/settings"
	"github.com/xenking/quickpay/internal/domain/transaction"
)

type bankingDetailsDTO struct {
	AccountNumber string `json:"accountNumber"`
	RecipientName string `json:"recipientName"`
}

type settingsResponse struct {
	PaymentMode    string            `json:"paymentMode"`
	ColumnView     string            `json:"columnView"`
	Accordion      []string          `json:"accordion"`
	Message        string            `json:"message"`
	BankingDetails bankingDetailsDTO `json:"bankingDetails"`
}

func (h *Handler) settingsResponse() settingsResponse {
	bd := h.state.BankingDetails()
	return settingsResponse{
		PaymentMode: string(h.state.PaymentMode()),
		ColumnView:  string(h.state.ColumnView()),
		Accordion:   h.state.AccordionOpen(),
		Message:     h.state.Message(),
		BankingDetails: bankingDetailsDTO{
			AccountNumber: bd.AccountNumber,
			RecipientName: bd.RecipientName,
		},
	}
}

func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.settingsResponse())
}

// putSetting decodes the request into req, applies it and answers with the
// full settings.
func putSetting[T any](h *Handler, w http.ResponseWriter, r *http.Request, apply func(req T) error) {
	var req T
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := apply(req); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.settingsResponse())
}

func (h *Handler) SetPaymentMode(w http.ResponseWriter, r *http.Request) {
	putSetting(h, w, r, func(req struct {
		Mode string `json:"mode"`
	}) error {
		return h.state.SetPaymentMode(r.Context(), transaction.Method(req.Mode))
	})
}

func (h *Handler) SetColumnView(w http.ResponseWriter, r *http.Request) {
	putSetting(h, w, r, func(req struct {
		View string `json:"view"`
	}) error {
		return h.state.SetColumnView(r.Context(), settings.ColumnView(req.View))
	})
}

func (h *Handler) SetAccordion(w http.ResponseWriter, r *http.Request) {
	putSetting(h, w, r, func(req struct {
		Open []string `json:"open"`
	}) error {
		return h.state.SetAccordionOpen(r.Context(), req.Open)
	})
}

func (h *Handler) SetMessage(w http.ResponseWriter, r *http.Request) {
	putSetting(h, w, r, func(req struct {
		Message string `json:"message"`
	}) error {
		return h.state.SetMessage(r.Context(), req.Message)
	})
}

func (h *Handler) SetBankingDetails(w http.ResponseWriter, r *http.Request) {
	putSetting(h, w, r, func(req bankingDetailsDTO) error {
		return h.state.SetBankingDetails(r.Context(), payment.BankingDetails{
			AccountNumber: req.AccountNumber,
			RecipientName: req.RecipientName,
		})
	})
}
