package bolt

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"

	"github.com/xenking/quickpay/internal/domain/checkout"
	"github.com/xenking/quickpay/internal/domain/product"
	"github.com/xenking/quickpay/internal/domain/transaction"
)

// KeyTransactions is the kv key of the transaction log.
const KeyTransactions = "qr-pay-transactions"

var (
	_ transaction.Repository = (*TransactionRepository)(nil)
	_ checkout.SaleCommitter = (*SaleRepository)(nil)
)

// TransactionRepository implements transaction.Repository on the kv bucket.
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository returns a TransactionRepository over db.
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

type itemRecord struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     amount `json:"price"`
	Quantity  int    `json:"quantity"`
}

type transactionRecord struct {
	ID            string       `json:"id"`
	Date          time.Time    `json:"date"`
	Total         amount       `json:"total"`
	Items         []itemRecord `json:"items"`
	PaymentMethod string       `json:"paymentMethod"`
}

// Load returns the stored log, newest first.
func (r *TransactionRepository) Load(ctx context.Context) ([]transaction.Transaction, error) {
	var records []transactionRecord
	if _, err := r.db.Get(ctx, KeyTransactions, &records); err != nil {
		return nil, errors.Wrap(err, "loading transactions")
	}

	out := make([]transaction.Transaction, len(records))
	for i, rec := range records {
		items := make([]transaction.Item, len(rec.Items))
		for j, it := range rec.Items {
			items[j] = transaction.Item{
				ProductID: it.ProductID,
				Name:      it.Name,
				Price:     decimal.Decimal(it.Price),
				Quantity:  it.Quantity,
			}
		}
		method := transaction.Method(rec.PaymentMethod)
		if method != transaction.MethodQR {
			method = transaction.MethodCash
		}
		out[i] = transaction.Transaction{
			ID:            rec.ID,
			Timestamp:     rec.Date,
			Total:         decimal.Decimal(rec.Total),
			Items:         items,
			PaymentMethod: method,
		}
	}
	return out, nil
}

// Save replaces the stored log.
func (r *TransactionRepository) Save(_ context.Context, log []transaction.Transaction) error {
	return r.db.bolt.Update(func(tx *bbolt.Tx) error {
		return putTransactions(tx, log)
	})
}

func putTransactions(tx *bbolt.Tx, log []transaction.Transaction) error {
	records := make([]transactionRecord, len(log))
	for i, t := range log {
		items := make([]itemRecord, len(t.Items))
		for j, it := range t.Items {
			items[j] = itemRecord{
				ProductID: it.ProductID,
				Name:      it.Name,
				Price:     amount(it.Price),
				Quantity:  it.Quantity,
			}
		}
		records[i] = transactionRecord{
			ID:            t.ID,
			Date:          t.Timestamp.UTC(),
			Total:         amount(t.Total),
			Items:         items,
			PaymentMethod: string(t.PaymentMethod),
		}
	}
	return putJSON(tx, KeyTransactions, records)
}

// SaleRepository commits a settled sale.
type SaleRepository struct {
	db *DB
}

// NewSaleRepository returns a SaleRepository over db.
func NewSaleRepository(db *DB) *SaleRepository {
	return &SaleRepository{db: db}
}

// CommitSale writes the product list and the transaction log in a single
// bbolt transaction, so either both land or neither does.
func (r *SaleRepository) CommitSale(_ context.Context, products []product.Product, log []transaction.Transaction) error {
	err := r.db.bolt.Update(func(tx *bbolt.Tx) error {
		if err := putProducts(tx, products); err != nil {
			return errors.Wrap(err, "put products")
		}
		if err := putTransactions(tx, log); err != nil {
			return errors.Wrap(err, "put transactions")
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "commit sale")
	}
	return nil
}
