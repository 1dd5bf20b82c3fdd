package transaction

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method is how a sale was paid.
type Method string

// Payment methods.
const (
	MethodCash Method = "cash"
	MethodQR   Method = "qr"
)

// ErrUnknownMethod is returned when parsing an unsupported payment method.
var ErrUnknownMethod = errors.New("unknown payment method")

// ParseMethod parses a payment method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodCash, MethodQR:
		return m, nil
	default:
		return "", errors.Wrapf(ErrUnknownMethod, "%q", s)
	}
}

// Label returns the display label used on receipts and exports.
func (m Method) Label() string {
	if m == MethodCash {
		return "Hotově"
	}
	return "QR Platba"
}

// Item is a sold line frozen at sale time.
type Item struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// Subtotal returns price × quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Transaction is a completed sale. It never changes after it is recorded.
type Transaction struct {
	ID            string
	Timestamp     time.Time
	Total         decimal.Decimal
	Items         []Item
	PaymentMethod Method
}

// ItemCount sums the quantities of all items.
func (t Transaction) ItemCount() int {
	var n int
	for _, it := range t.Items {
		n += it.Quantity
	}
	return n
}

// Repository persists the ordered transaction log, newest first.
type Repository interface {
	Load(ctx context.Context) ([]Transaction, error)
	Save(ctx context.Context, log []Transaction) error
}
