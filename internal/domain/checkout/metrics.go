package checkout

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/quickpay/internal/domain/transaction"
)

const instrumentationName = "github.com/xenking/quickpay/internal/domain/checkout"

type metrics struct {
	sales   metric.Int64Counter
	items   metric.Int64Counter
	revenue metric.Float64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(instrumentationName)

	sales, err := meter.Int64Counter("pos.checkout.sales",
		metric.WithDescription("Settled sales"),
	)
	if err != nil {
		return nil, err
	}
	items, err := meter.Int64Counter("pos.checkout.items",
		metric.WithDescription("Units sold"),
	)
	if err != nil {
		return nil, err
	}
	revenue, err := meter.Float64Counter("pos.checkout.revenue",
		metric.WithDescription("Revenue of settled sales"),
		metric.WithUnit("{CZK}"),
	)
	if err != nil {
		return nil, err
	}
	return &metrics{sales: sales, items: items, revenue: revenue}, nil
}

func (m *metrics) record(ctx context.Context, t transaction.Transaction) {
	attrs := metric.WithAttributes(attribute.String("method", string(t.PaymentMethod)))
	m.sales.Add(ctx, 1, attrs)
	m.items.Add(ctx, int64(t.ItemCount()), attrs)
	m.revenue.Add(ctx, t.Total.InexactFloat64(), attrs)
}
