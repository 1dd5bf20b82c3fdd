package app

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/quickpay/internal/domain/checkout"
	"github.com/xenking/quickpay/internal/domain/payment"
	"github.com/xenking/quickpay/internal/domain/product"
	"github.com/xenking/quickpay/internal/domain/settings"
	"github.com/xenking/quickpay/internal/domain/transaction"
	"github.com/xenking/quickpay/internal/storage/bolt"
)

// Services bundles the domain services sharing one store. The server and
// the operator tool both build on it.
type Services struct {
	DB       *bolt.DB
	Catalog  *product.Catalog
	History  *transaction.Log
	Settings *settings.State
	Checkout *checkout.Service
}

// OpenServices opens the store at path and loads every service from it.
// A missing catalog is seeded with the default products.
func OpenServices(ctx context.Context, path string, inlineLimit int, opts ...checkout.Option) (*Services, error) {
	db, err := bolt.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}

	s, err := newServices(ctx, db, inlineLimit, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newServices(ctx context.Context, db *bolt.DB, inlineLimit int, opts []checkout.Option) (*Services, error) {
	catalog, err := product.NewCatalog(ctx,
		bolt.NewProductRepository(db),
		bolt.NewImageRepository(db),
		product.WithInlineImageLimit(inlineLimit),
	)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}

	history, err := transaction.NewLog(ctx, bolt.NewTransactionRepository(db))
	if err != nil {
		return nil, errors.Wrap(err, "load transactions")
	}

	state, err := settings.Load(ctx, db)
	if err != nil {
		return nil, errors.Wrap(err, "load settings")
	}

	svc, err := checkout.NewService(catalog, history, bolt.NewSaleRepository(db), state, payment.NewPNGRenderer(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout")
	}

	return &Services{
		DB:       db,
		Catalog:  catalog,
		History:  history,
		Settings: state,
		Checkout: svc,
	}, nil
}

// Close releases the store.
func (s *Services) Close() error {
	return s.DB.Close()
}
