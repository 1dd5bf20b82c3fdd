package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/quickpay/internal/domain/transaction"
	"github.com/xenking/quickpay/internal/exchange"
)

type itemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type transactionResponse struct {
	ID            string         `json:"id"`
	Date          time.Time      `json:"date"`
	Total         float64        `json:"total"`
	Items         []itemResponse `json:"items"`
	PaymentMethod string         `json:"paymentMethod"`
	PaymentLabel  string         `json:"paymentLabel"`
}

func (h *Handler) toTransactionResponse(t transaction.Transaction) transactionResponse {
	items := make([]itemResponse, len(t.Items))
	for i, it := range t.Items {
		items[i] = itemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price.InexactFloat64(),
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal().InexactFloat64(),
		}
	}
	return transactionResponse{
		ID:            t.ID,
		Date:          t.Timestamp.In(h.loc),
		Total:         t.Total.InexactFloat64(),
		Items:         items,
		PaymentMethod: string(t.PaymentMethod),
		PaymentLabel:  t.PaymentMethod.Label(),
	}
}

type historyResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Revenue      float64               `json:"revenue"`
	ItemsSold    int                   `json:"itemsSold"`
	DailyIncome  float64               `json:"dailyIncome"`
}

// filterFromQuery reads method, date and productId. Empty values and "all"
// do not constrain.
func (h *Handler) filterFromQuery(r *http.Request) (transaction.Filter, error) {
	q := r.URL.Query()
	var f transaction.Filter

	if m := q.Get("method"); m != "" && m != "all" {
		method, err := transaction.ParseMethod(m)
		if err != nil {
			return f, err
		}
		f.Method = method
	}
	if d := q.Get("date"); d != "" {
		date, err := transaction.ParseDate(d, h.loc)
		if err != nil {
			return f, badRequest(err.Error())
		}
		f.Date = date
	}
	if id := q.Get("productId"); id != "" && id != "all" {
		f.ProductID = id
	}
	return f, nil
}

// ListTransactions returns the filtered history with its aggregates and the
// income of the selected day (today when no date is given).
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := h.filterFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	log := h.history.List()
	s := transaction.Summarize(log, f, h.loc)
	resp := historyResponse{
		Transactions: make([]transactionResponse, len(s.Transactions)),
		Revenue:      s.Revenue.InexactFloat64(),
		ItemsSold:    s.ItemsSold,
		DailyIncome:  transaction.DailyIncome(log, f.Date, h.now(), h.loc).InexactFloat64(),
	}
	for i, t := range s.Transactions {
		resp.Transactions[i] = h.toTransactionResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteLatestTransaction removes the most recent sale.
func (h *Handler) DeleteLatestTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.history.DeleteLatest(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Transaction deleted", zap.String("transaction_id", t.ID))
	writeJSON(w, http.StatusOK, h.toTransactionResponse(t))
}

type deleteTransactionsRequest struct {
	IDs []string `json:"ids"`
}

type deleteTransactionsResponse struct {
	Deleted int `json:"deleted"`
}

func (h *Handler) DeleteTransactions(w http.ResponseWriter, r *http.Request) {
	var req deleteTransactionsRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	n, err := h.history.DeleteBatch(r.Context(), req.IDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Transactions deleted", zap.Int("count", n))
	writeJSON(w, http.StatusOK, deleteTransactionsResponse{Deleted: n})
}

func (h *Handler) ClearTransactions(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Clear(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Transaction history cleared")
	w.WriteHeader(http.StatusNoContent)
}

// ExportTransactions downloads the filtered history, one row per sold
// line, as xlsx (default) or csv.
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := h.filterFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s := transaction.Summarize(h.history.List(), f, h.loc)
	rows := exchange.Rows(s.Transactions, h.loc)
	stamp := h.now().In(h.loc).Format("2006-01-02")

	switch format := r.URL.Query().Get("format"); format {
	case "", "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="transakce-`+stamp+`.xlsx"`)
		err = exchange.WriteXLSX(w, rows)
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="transakce-`+stamp+`.csv"`)
		err = exchange.WriteCSV(w, rows)
	default:
		h.fail(w, r, badRequest("format must be xlsx or csv"))
		return
	}
	if err != nil {
		// Headers are gone by now; only log.
		zctx.From(r.Context()).Error("Export failed", zap.Error(errors.Wrap(err, "export transactions")))
	}
}

// Backup streams a gzip snapshot of the store.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	stamp := h.now().In(h.loc).Format("20060102-150405")
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="quickpay-`+stamp+`.db.gz"`)
	n, err := h.backup(w)
	if err != nil {
		zctx.From(r.Context()).Error("Backup failed", zap.Error(err))
		return
	}
	zctx.From(r.Context()).Info("Backup written", zap.Int64("bytes", n))
}
