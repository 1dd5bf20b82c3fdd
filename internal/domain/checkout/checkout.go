// Package checkout drives a sale from the cart to a recorded transaction.
//
// A checkout moves Idle -> Awaiting (cash or qr) on Open and back to Idle on
// Settle. Settle has no confirmation signal for QR payments: closing the
// dialog records the sale whether or not the customer paid.
package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/quickpay/internal/domain/cart"
	"github.com/xenking/quickpay/internal/domain/payment"
	"github.com/xenking/quickpay/internal/domain/product"
	"github.com/xenking/quickpay/internal/domain/transaction"
)

// Sentinel errors for checkout transitions.
var (
	ErrEmptyCart    = errors.New("cart is empty")
	ErrCheckoutOpen = errors.New("checkout is already open")
	ErrNotOpen      = errors.New("no checkout in progress")
)

// State is the checkout dialog state.
type State string

// Checkout states.
const (
	StateIdle     State = "idle"
	StateAwaiting State = "awaiting_confirmation"
)

// SaleCommitter writes the updated catalog and transaction log in one
// storage operation.
type SaleCommitter interface {
	CommitSale(ctx context.Context, products []product.Product, log []transaction.Transaction) error
}

// Preferences supplies the payee data for QR payloads.
type Preferences interface {
	BankingDetails() payment.BankingDetails
	Message() string
}

// Session is the open checkout dialog.
type Session struct {
	State State
	Mode  transaction.Method
	Total decimal.Decimal
	// Payload and QRCode are set for QR checkouts. QRCode is empty when
	// rendering failed.
	Payload string
	QRCode  []byte

	// items are the cart lines priced when the dialog opened. Settle records
	// them as is, so the sale matches the amount shown to the customer.
	items []transaction.Item
}

// LineView is a cart line priced against the live catalog.
type LineView struct {
	Product  product.Product
	Quantity int
	Subtotal decimal.Decimal
}

// CartView is the priced cart.
type CartView struct {
	Lines     []LineView
	Total     decimal.Decimal
	ItemCount int
}

// Service serializes cart edits and checkout transitions.
type Service struct {
	catalog   *product.Catalog
	log       *transaction.Log
	committer SaleCommitter
	prefs     Preferences
	renderer  payment.Renderer

	now     func() time.Time
	newID   func() string
	tracer  trace.Tracer
	meter   metric.MeterProvider
	metrics *metrics

	mu      sync.Mutex
	cart    cart.Cart
	session Session
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the transaction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides transaction id generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// WithTracerProvider sets the tracer provider for settle spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider for sale counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp }
}

// NewService creates a checkout Service over the catalog and log.
func NewService(
	catalog *product.Catalog,
	log *transaction.Log,
	committer SaleCommitter,
	prefs Preferences,
	renderer payment.Renderer,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		catalog:   catalog,
		log:       log,
		committer: committer,
		prefs:     prefs,
		renderer:  renderer,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		tracer:    otel.GetTracerProvider().Tracer(instrumentationName),
		meter:     otel.GetMeterProvider(),
		session:   Session{State: StateIdle},
	}
	for _, o := range opts {
		o(s)
	}

	m, err := newMetrics(s.meter)
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}
	s.metrics = m
	return s, nil
}

// Cart returns the priced cart.
func (s *Service) Cart() CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartView()
}

func (s *Service) cartView() CartView {
	lines := s.cart.Lines()
	v := CartView{Lines: make([]LineView, 0, len(lines)), Total: decimal.Zero}
	for _, l := range lines {
		p, ok := s.catalog.Lookup(l.ProductID)
		if !ok {
			continue
		}
		sub := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		v.Lines = append(v.Lines, LineView{Product: p, Quantity: l.Quantity, Subtotal: sub})
		v.Total = v.Total.Add(sub)
		v.ItemCount += l.Quantity
	}
	return v
}

// AdjustQuantity changes the in-cart quantity of a product by delta. Cart
// edits are rejected while a checkout dialog is open.
func (s *Service) AdjustQuantity(ctx context.Context, productID string, delta int) (CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != StateIdle {
		return CartView{}, ErrCheckoutOpen
	}

	p, err := s.catalog.Get(productID)
	if err != nil {
		// A deleted product can still be taken out of the cart.
		if delta >= 0 || s.cart.Quantity(productID) == 0 {
			return CartView{}, err
		}
		p = product.Product{ID: productID}
	}

	if err := s.cart.Adjust(p, delta); err != nil {
		zctx.From(ctx).Debug("Cart adjustment rejected",
			zap.String("product_id", productID),
			zap.Int("delta", delta),
			zap.Error(err),
		)
		return CartView{}, err
	}
	return s.cartView(), nil
}

// ClearCart empties the cart while no checkout is open.
func (s *Service) ClearCart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != StateIdle {
		return ErrCheckoutOpen
	}
	s.cart.Clear()
	return nil
}

// Open starts a checkout in the given mode. The cart must have a positive
// total. For QR checkouts the payment payload is built and rendered; a
// render failure leaves the image empty and does not fail the checkout.
func (s *Service) Open(ctx context.Context, mode transaction.Method) (Session, error) {
	if _, err := transaction.ParseMethod(string(mode)); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != StateIdle {
		return Session{}, ErrCheckoutOpen
	}
	items, total := s.pricedItems()
	if len(items) == 0 || !total.IsPositive() {
		return Session{}, ErrEmptyCart
	}

	sess := Session{State: StateAwaiting, Mode: mode, Total: total, items: items}
	if mode == transaction.MethodQR {
		sess.Payload = payment.BuildPayload(total, s.prefs.BankingDetails(), s.prefs.Message())
		img, err := s.renderer.Render(sess.Payload)
		if err != nil {
			zctx.From(ctx).Warn("QR render failed", zap.Error(err))
			img = nil
		}
		sess.QRCode = img
	}

	s.session = sess
	return sess, nil
}

// pricedItems snapshots the cart lines at live catalog prices. Lines whose
// product no longer exists are left out.
func (s *Service) pricedItems() ([]transaction.Item, decimal.Decimal) {
	lines := s.cart.Lines()
	items := make([]transaction.Item, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		p, ok := s.catalog.Lookup(l.ProductID)
		if !ok {
			continue
		}
		it := transaction.Item{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  l.Quantity,
		}
		items = append(items, it)
		total = total.Add(it.Subtotal())
	}
	return items, total
}

// Session returns the current checkout dialog state.
func (s *Service) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Change returns received minus the checkout total. A negative result means
// the cash is insufficient; it is advisory and does not block Settle.
func (s *Service) Change(received decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != StateAwaiting {
		return decimal.Zero, ErrNotOpen
	}
	return received.Sub(s.session.Total), nil
}

// Settle records the open checkout: stock is decremented, a transaction
// snapshot is prepended to the log, both are committed in one storage write
// and the cart is cleared. The sale carries the lines and total priced at
// Open. Catalog and log edits wait for the commit, and when it fails nothing
// changes.
func (s *Service) Settle(ctx context.Context) (transaction.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Settle")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State != StateAwaiting {
		return transaction.Transaction{}, ErrNotOpen
	}
	mode := s.session.Mode

	items := append([]transaction.Item(nil), s.session.items...)
	moves := make([]product.StockMove, 0, len(items))
	for _, it := range items {
		moves = append(moves, product.StockMove{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	t := transaction.Transaction{
		ID:            s.newID(),
		Timestamp:     s.now().UTC(),
		Total:         s.session.Total,
		Items:         items,
		PaymentMethod: mode,
	}
	span.SetAttributes(
		attribute.String("pos.transaction_id", t.ID),
		attribute.String("pos.payment_method", string(mode)),
	)

	// Lock order is catalog, then log.
	err := s.catalog.ApplySale(moves, func(products []product.Product) error {
		return s.log.Record(t, func(history []transaction.Transaction) error {
			return s.committer.CommitSale(ctx, products, history)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit sale")
		return transaction.Transaction{}, errors.Wrap(err, "commit sale")
	}

	s.cart.Clear()
	s.session = Session{State: StateIdle}

	s.metrics.record(ctx, t)
	zctx.From(ctx).Info("Sale settled",
		zap.String("transaction_id", t.ID),
		zap.String("method", string(mode)),
		zap.String("total", t.Total.String()),
		zap.Int("items", t.ItemCount()),
	)
	return t, nil
}
