package bolt

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"

	"github.com/xenking/quickpay/internal/domain/product"
)

// KeyProducts is the kv key of the product list.
const KeyProducts = "qr-pay-products"

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository on the kv bucket.
type ProductRepository struct {
	db *DB
}

// NewProductRepository returns a ProductRepository over db.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

type productRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    amount `json:"price"`
	Stock    int    `json:"stock"`
	Enabled  *bool  `json:"enabled,omitempty"`
	Icon     string `json:"icon,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Load returns the stored product list.
func (r *ProductRepository) Load(ctx context.Context) ([]product.Product, bool, error) {
	var records []productRecord
	found, err := r.db.Get(ctx, KeyProducts, &records)
	if err != nil {
		return nil, false, errors.Wrap(err, "loading products")
	}
	if !found {
		return nil, false, nil
	}

	products := make([]product.Product, len(records))
	for i, rec := range records {
		products[i] = rec.toDomain()
	}
	return products, true, nil
}

// Save replaces the stored product list.
func (r *ProductRepository) Save(_ context.Context, products []product.Product) error {
	return r.db.bolt.Update(func(tx *bbolt.Tx) error {
		return putProducts(tx, products)
	})
}

func putProducts(tx *bbolt.Tx, products []product.Product) error {
	records := make([]productRecord, len(products))
	for i, p := range products {
		records[i] = productToRecord(p)
	}
	return putJSON(tx, KeyProducts, records)
}

func productToRecord(p product.Product) productRecord {
	enabled := p.Enabled
	return productRecord{
		ID:       p.ID,
		Name:     p.Name,
		Price:    amount(p.Price),
		Stock:    p.Stock,
		Enabled:  &enabled,
		Icon:     p.Icon.String(),
		ImageURL: p.ImageURL,
	}
}

// toDomain maps a stored record. Records written before the enabled flag
// existed count as enabled.
func (rec productRecord) toDomain() product.Product {
	enabled := true
	if rec.Enabled != nil {
		enabled = *rec.Enabled
	}
	return product.Product{
		ID:       rec.ID,
		Name:     rec.Name,
		Price:    decimal.Decimal(rec.Price),
		Stock:    rec.Stock,
		Enabled:  enabled,
		Icon:     product.LookupIcon(rec.Icon),
		ImageURL: rec.ImageURL,
	}
}
