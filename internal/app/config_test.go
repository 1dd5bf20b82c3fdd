package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/quickpay/internal/domain/product"
	"github.com/xenking/quickpay/internal/domain/transaction"
)

func validConfig() Config {
	return Config{
		Addr:             "127.0.0.1:8080",
		DataFile:         "data/quickpay.db",
		Location:         "Europe/Prague",
		ImageInlineLimit: 65536,
		MaxUploadBytes:   5 << 20,
		MaxImportBytes:   50 << 20,
		Throttle:         ThrottleConfig{Max: 30, Window: time.Minute},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "throttle disabled", modify: func(c *Config) { c.Throttle = ThrottleConfig{} }},
		{name: "missing addr", modify: func(c *Config) { c.Addr = "" }, wantErr: true},
		{name: "missing data file", modify: func(c *Config) { c.DataFile = "" }, wantErr: true},
		{name: "unknown location", modify: func(c *Config) { c.Location = "Mars/Olympus" }, wantErr: true},
		{name: "negative inline limit", modify: func(c *Config) { c.ImageInlineLimit = -1 }, wantErr: true},
		{name: "zero upload limit", modify: func(c *Config) { c.MaxUploadBytes = 0 }, wantErr: true},
		{name: "negative throttle", modify: func(c *Config) { c.Throttle.Max = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Europe/Prague", cfg.Loc().String())
		})
	}
}

func TestConfig_LocFallback(t *testing.T) {
	cfg := Config{Location: "Mars/Olympus"}
	assert.Equal(t, time.UTC, cfg.Loc())
}

func TestOpenServices(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "pos.db")

	svc, err := OpenServices(ctx, path, 1024)
	require.NoError(t, err)
	assert.Len(t, svc.Catalog.List(), len(product.Defaults()))

	first := svc.Catalog.List()[0]
	_, err = svc.Checkout.AdjustQuantity(ctx, first.ID, 2)
	require.NoError(t, err)
	_, err = svc.Checkout.Open(ctx, transaction.MethodCash)
	require.NoError(t, err)
	tx, err := svc.Checkout.Settle(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	reopened, err := OpenServices(ctx, path, 1024)
	require.NoError(t, err)
	defer reopened.Close()

	log := reopened.History.List()
	require.Len(t, log, 1)
	assert.Equal(t, tx.ID, log[0].ID)

	p, err := reopened.Catalog.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Stock-2, p.Stock)
}
