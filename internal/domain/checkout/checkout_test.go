package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/quickpay/internal/domain/cart"
	"github.com/xenking/quickpay/internal/domain/payment"
	"github.com/xenking/quickpay/internal/domain/product"
	"github.com/xenking/quickpay/internal/domain/transaction"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products []product.Product
}

func (m *mockProductRepo) Load(_ context.Context) ([]product.Product, bool, error) {
	return append([]product.Product(nil), m.products...), true, nil
}

func (m *mockProductRepo) Save(_ context.Context, products []product.Product) error {
	m.products = append([]product.Product(nil), products...)
	return nil
}

type mockImages struct{}

func (mockImages) GetImage(context.Context, string) (string, error) {
	return "", product.ErrImageNotFound
}

func (mockImages) PutImage(context.Context, string, string) error { return nil }

func (mockImages) DeleteImage(context.Context, string) error { return nil }

func (mockImages) ImageKeys(context.Context) ([]string, error) { return nil, nil }

type mockTxRepo struct {
	stored []transaction.Transaction
}

func (m *mockTxRepo) Load(_ context.Context) ([]transaction.Transaction, error) {
	return m.stored, nil
}

func (m *mockTxRepo) Save(_ context.Context, log []transaction.Transaction) error {
	m.stored = log
	return nil
}

type mockCommitter struct {
	products []product.Product
	log      []transaction.Transaction
	calls    int
	err      error
}

func (m *mockCommitter) CommitSale(_ context.Context, products []product.Product, log []transaction.Transaction) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.products = products
	m.log = log
	return nil
}

// blockingCommitter parks inside CommitSale until release is closed.
type blockingCommitter struct {
	mockCommitter
	entered chan struct{}
	release chan struct{}
}

func newBlockingCommitter() *blockingCommitter {
	return &blockingCommitter{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingCommitter) CommitSale(ctx context.Context, products []product.Product, log []transaction.Transaction) error {
	close(b.entered)
	<-b.release
	return b.mockCommitter.CommitSale(ctx, products, log)
}

type mockPrefs struct{}

func (mockPrefs) BankingDetails() payment.BankingDetails {
	return payment.BankingDetails{AccountNumber: "123456789/0800", RecipientName: "Cafe"}
}

func (mockPrefs) Message() string { return "Thanks" }

type mockRenderer struct {
	lastText string
	err      error
}

func (m *mockRenderer) Render(text string) ([]byte, error) {
	m.lastText = text
	if m.err != nil {
		return nil, m.err
	}
	return []byte("png"), nil
}

// --- Helpers ---

var fixedNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	repo      *mockProductRepo
	catalog   *product.Catalog
	log       *transaction.Log
	committer *mockCommitter
	renderer  *mockRenderer
}

func newFixture(t *testing.T, products ...product.Product) *fixture {
	t.Helper()
	ctx := context.Background()

	repo := &mockProductRepo{products: products}
	catalog, err := product.NewCatalog(ctx, repo, mockImages{})
	require.NoError(t, err)
	log, err := transaction.NewLog(ctx, &mockTxRepo{})
	require.NoError(t, err)

	f := &fixture{
		repo:      repo,
		catalog:   catalog,
		log:       log,
		committer: &mockCommitter{},
		renderer:  &mockRenderer{},
	}
	f.svc, err = NewService(catalog, log, f.committer, mockPrefs{}, f.renderer,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "tx-1" }),
	)
	require.NoError(t, err)
	return f
}

func coffee() product.Product {
	return product.Product{ID: "1", Name: "Coffee", Price: decimal.NewFromInt(85), Stock: 20, Enabled: true}
}

func tea() product.Product {
	return product.Product{ID: "2", Name: "Tea", Price: decimal.NewFromInt(40), Stock: 5, Enabled: true}
}

// --- Tests ---

func TestCheckout_CashScenario(t *testing.T) {
	f := newFixture(t, coffee())
	ctx := context.Background()

	for range 3 {
		_, err := f.svc.AdjustQuantity(ctx, "1", 1)
		require.NoError(t, err)
	}
	view := f.svc.Cart()
	assert.True(t, decimal.NewFromInt(255).Equal(view.Total))
	assert.Equal(t, 3, view.ItemCount)

	sess, err := f.svc.Open(ctx, transaction.MethodCash)
	require.NoError(t, err)
	assert.Equal(t, StateAwaiting, sess.State)
	assert.Empty(t, sess.Payload)

	change, err := f.svc.Change(decimal.NewFromInt(300))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(45).Equal(change))

	got, err := f.svc.Settle(ctx)
	require.NoError(t, err)

	assert.Equal(t, "tx-1", got.ID)
	assert.Equal(t, fixedNow, got.Timestamp)
	assert.Equal(t, transaction.MethodCash, got.PaymentMethod)
	assert.True(t, decimal.NewFromInt(255).Equal(got.Total))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "1", got.Items[0].ProductID)
	assert.Equal(t, "Coffee", got.Items[0].Name)
	assert.True(t, decimal.NewFromInt(85).Equal(got.Items[0].Price))
	assert.Equal(t, 3, got.Items[0].Quantity)

	p, err := f.catalog.Get("1")
	require.NoError(t, err)
	assert.Equal(t, 17, p.Stock)

	require.Equal(t, 1, f.log.Len())
	assert.Equal(t, "tx-1", f.log.List()[0].ID)
	assert.Empty(t, f.svc.Cart().Lines)
	assert.Equal(t, StateIdle, f.svc.Session().State)

	// Both writes went through one commit.
	assert.Equal(t, 1, f.committer.calls)
	assert.Equal(t, 17, f.committer.products[0].Stock)
	require.Len(t, f.committer.log, 1)
}

func TestCheckout_SettleDecrementsEveryLine(t *testing.T) {
	f := newFixture(t, coffee(), tea())
	ctx := context.Background()

	_, err := f.svc.AdjustQuantity(ctx, "1", 2)
	require.NoError(t, err)
	_, err = f.svc.AdjustQuantity(ctx, "2", 1)
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, transaction.MethodCash)
	require.NoError(t, err)
	got, err := f.svc.Settle(ctx)
	require.NoError(t, err)

	a, _ := f.catalog.Get("1")
	b, _ := f.catalog.Get("2")
	assert.Equal(t, 18, a.Stock)
	assert.Equal(t, 4, b.Stock)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "1", got.Items[0].ProductID)
	assert.Equal(t, "2", got.Items[1].ProductID)
	assert.True(t, decimal.NewFromInt(210).Equal(got.Total))
}

func TestCheckout_SnapshotSurvivesCatalogEdits(t *testing.T) {
	f := newFixture(t, coffee())
	ctx := context.Background()

	_, err := f.svc.AdjustQuantity(ctx, "1", 1)
	require.NoError(t, err)
	_, err = f.svc.Open(ctx, transaction.MethodCash)
	require.NoError(t, err)
	_, err = f.svc.Settle(ctx)
	require.NoError(t, err)

	d := product.DraftOf(coffee())
	d.Name = "Espresso"
	d.Price = decimal.NewFromInt(99)
	_, err = f.catalog.Update(ctx, "1", d)
	require.NoError(t, err)

	recorded := f.log.List()[0].Items[0]
	assert.Equal(t, "Coffee", recorded.Name)
	assert.True(t, decimal.NewFromInt(85).Equal(recorded.Price))
}

func TestCheckout_QRBuildsPayload(t *testing.T) {
	f := newFixture(t, coffee())
	ctx := context.Background()

	_, err := f.svc.AdjustQuantity(ctx, "1", 3)
	require.NoError(t, err)

	sess, err := f.svc.Open(ctx, transaction.MethodQR)
	require.NoError(t, err)
	assert.Equal(t, "SPD*1.0*ACC:123456789/0800*RN:Cafe*AM:255*CC:CZK*MSG:Thanks", sess.Payload)
	assert.Equal(t, sess.Payload, f.renderer.lastText)
	assert.Equal(t, []byte("png"), sess.QRCode)

	got, err := f.svc.Settle(ctx)
	require.NoError(t, err)
	assert.Equal(t, transaction.MethodQR, got.PaymentMethod)
}

func TestCheckout_QRRenderFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, coffee())
	f.renderer.err = errors.New("boom")
	ctx := context.Background()

	_, err := f.svc.AdjustQuantity(ctx, "1", 1)
	require.NoError(t, err)

	sess, err := f.svc.Open(ctx, transaction.MethodQR)
	require.NoError(t, err)
	assert.Empty(t, sess.QRCode)
	assert.NotEmpty(t, sess.Payload)
}

func TestCheckout_OpenGuards(t *testing.T) {
	f := newFixture(t, coffee())
	ctx := context.Background()

	_, err := f.svc.Open(ctx, transaction.MethodCash)
	require.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.svc.Open(ctx, "card")
	require.ErrorIs(t, err, transaction.ErrUnknownMethod)

	_, err = f.svc.AdjustQuantity(ctx, "1", 1)
	require.NoError(t, err)
	_, err = f.svc.Open(ctx, transaction.MethodCash)
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, transaction.MethodQR)
	require.ErrorIs(t, err, ErrCheckoutOpen)

	_, err = f.svc.AdjustQuantity(ctx, "1", 1)
	require.ErrorIs(t, err, ErrCheckoutOpen)
	require.ErrorIs(t, f.svc.ClearCart(), ErrCheckoutOpen)
}

func TestCheckout_NegativeChangeIsAdvisory(t *testing.T) {
	f := newFixture(t, coffee())
	ctx := context.Background()

	_, err := f.svc.Change(decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrNotOpen)

	_, err = f.svc.AdjustQuantity(ctx, "1", 2)
	require.NoError(t, err)
	_, err = f.svc.Open(ctx, transaction.MethodCash)
	require.NoError(t, err)

	change, err := f.svc.Change(decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(-70).Equal(change))

	_, err = f.svc.Settle(ctx)
	require.NoError(t, err)
}

func TestCheckout_SettleWithoutOpen(t *testing.T) {
	f := newFixture(t, coffee())

	_, err := f.svc.Settle(context.Background())
	require.ErrorIs(t, err, ErrNotOpen)
	assert.Zero(t, f.committer.calls)
}

func TestCheckout_CommitFailureChangesNothing(t *testing.T) {
	f := newFixture(t, coffee())
	f.committer.err = errors.New("disk full")
	ctx := context.Background()

	_, err := f.svc.AdjustQuantity(ctx, "1", 2)
	require.NoError(t, err)
	_, err = f.svc.Open(ctx, transaction.MethodCash)
	require.NoError(t, err)

	_, err = f.svc.Settle(ctx)
	require.Error(t, err)

	p, _ := f.catalog.Get("1")
	assert.Equal(t, 20, p.Stock)
	assert.Zero(t, f.log.Len())
	assert.Equal(t, 2, f.svc.Cart().ItemCount)
	assert.Equal(t, StateAwaiting, f.svc.Session().State)

	// A retry after the storage recovers goes through.
	f.committer.err = nil
	_, err = f.svc.Settle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.log.Len())
}

func TestCheckout_StockWarning(t *testing.T) {
	f := newFixture(t, tea())
	ctx := context.Background()

	_, err := f.svc.AdjustQuantity(ctx, "2", 5)
	require.NoError(t, err)

	_, err = f.svc.AdjustQuantity(ctx, "2", 1)
	var se *cart.StockExceededError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Tea", se.Name)
	assert.Equal(t, 5, f.svc.Cart().ItemCount)
}

func TestCheckout_RemoveDeletedProductFromCart(t *testing.T) {
	f := newFixture(t, coffee(), tea())
	ctx := context.Background()

	_, err := f.svc.AdjustQuantity(ctx, "1", 2)
	require.NoError(t, err)
	require.NoError(t, f.catalog.Delete(ctx, "1"))

	_, err = f.svc.AdjustQuantity(ctx, "1", 1)
	require.ErrorIs(t, err, product.ErrNotFound)

	view, err := f.svc.AdjustQuantity(ctx, "1", -2)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)

	_, err = f.svc.AdjustQuantity(ctx, "missing", -1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestCheckout_SettleKeepsOpenPrices(t *testing.T) {
	f := newFixture(t, coffee())
	ctx := context.Background()

	_, err := f.svc.AdjustQuantity(ctx, "1", 3)
	require.NoError(t, err)
	sess, err := f.svc.Open(ctx, transaction.MethodQR)
	require.NoError(t, err)
	require.Contains(t, sess.Payload, "*AM:255*")

	d := product.DraftOf(coffee())
	d.Price = decimal.NewFromInt(99)
	_, err = f.catalog.Update(ctx, "1", d)
	require.NoError(t, err)

	got, err := f.svc.Settle(ctx)
	require.NoError(t, err)
	assert.True(t, sess.Total.Equal(got.Total), got.Total.String())
	require.Len(t, got.Items, 1)
	assert.True(t, decimal.NewFromInt(85).Equal(got.Items[0].Price))

	p, _ := f.catalog.Get("1")
	assert.Equal(t, 17, p.Stock)
	assert.True(t, decimal.NewFromInt(99).Equal(p.Price))
}

func TestCheckout_SettleAfterProductDeleted(t *testing.T) {
	f := newFixture(t, coffee(), tea())
	ctx := context.Background()

	_, err := f.svc.AdjustQuantity(ctx, "1", 1)
	require.NoError(t, err)
	_, err = f.svc.AdjustQuantity(ctx, "2", 2)
	require.NoError(t, err)
	_, err = f.svc.Open(ctx, transaction.MethodCash)
	require.NoError(t, err)
	require.NoError(t, f.catalog.Delete(ctx, "1"))

	got, err := f.svc.Settle(ctx)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.True(t, decimal.NewFromInt(165).Equal(got.Total))

	p, _ := f.catalog.Get("2")
	assert.Equal(t, 3, p.Stock)
	assert.Len(t, f.catalog.List(), 1)
}

func TestCheckout_CatalogEditWaitsForSettle(t *testing.T) {
	f := newFixture(t, coffee(), tea())
	bc := newBlockingCommitter()
	f.svc.committer = bc
	ctx := context.Background()

	_, err := f.svc.AdjustQuantity(ctx, "1", 1)
	require.NoError(t, err)
	_, err = f.svc.Open(ctx, transaction.MethodCash)
	require.NoError(t, err)

	settled := make(chan error, 1)
	go func() {
		_, err := f.svc.Settle(ctx)
		settled <- err
	}()
	<-bc.entered

	updated := make(chan error, 1)
	go func() {
		d := product.DraftOf(tea())
		d.Name = "Green Tea"
		d.Price = decimal.NewFromInt(45)
		_, err := f.catalog.Update(ctx, "2", d)
		updated <- err
	}()

	select {
	case err := <-updated:
		t.Fatalf("update finished during commit: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(bc.release)
	require.NoError(t, <-settled)
	require.NoError(t, <-updated)

	// The edit lands on top of the sale, in memory and in the store.
	for _, list := range [][]product.Product{f.catalog.List(), f.repo.products} {
		require.Len(t, list, 2)
		assert.Equal(t, 19, list[0].Stock)
		assert.Equal(t, "Green Tea", list[1].Name)
		assert.True(t, decimal.NewFromInt(45).Equal(list[1].Price))
	}
}

func TestCheckout_LogClearWaitsForSettle(t *testing.T) {
	f := newFixture(t, coffee())
	bc := newBlockingCommitter()
	f.svc.committer = bc
	ctx := context.Background()

	_, err := f.svc.AdjustQuantity(ctx, "1", 1)
	require.NoError(t, err)
	_, err = f.svc.Open(ctx, transaction.MethodCash)
	require.NoError(t, err)

	settled := make(chan error, 1)
	go func() {
		_, err := f.svc.Settle(ctx)
		settled <- err
	}()
	<-bc.entered

	cleared := make(chan error, 1)
	go func() { cleared <- f.log.Clear(ctx) }()

	select {
	case err := <-cleared:
		t.Fatalf("clear finished during commit: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(bc.release)
	require.NoError(t, <-settled)
	require.NoError(t, <-cleared)

	require.Len(t, bc.log, 1)
	assert.Zero(t, f.log.Len())
}
