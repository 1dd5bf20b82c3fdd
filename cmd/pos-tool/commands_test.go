package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/quickpay/internal/domain/payment"
	"github.com/xenking/quickpay/internal/domain/product"
	"github.com/xenking/quickpay/internal/domain/transaction"
)

func newEnv(t *testing.T) (*env, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &env{
		dataFile: filepath.Join(t.TempDir(), "pos.db"),
		loc:      time.UTC,
		out:      &out,
	}, &out
}

func runCommand(t *testing.T, e *env, name string, args ...string) error {
	t.Helper()
	cmd, ok := lookup(name)
	require.True(t, ok, name)
	return run(context.Background(), e, cmd, args)
}

func TestLookup(t *testing.T) {
	for _, c := range commands {
		got, ok := lookup(c.name)
		require.True(t, ok)
		assert.Equal(t, c.usage, got.usage)
	}
	_, ok := lookup("drop-database")
	assert.False(t, ok)
}

func TestSeed_RequiresForce(t *testing.T) {
	e, _ := newEnv(t)
	err := runCommand(t, e, "seed")
	require.ErrorIs(t, err, errUsage)

	require.NoError(t, runCommand(t, e, "seed", "-force"))
}

func TestExportImportProducts(t *testing.T) {
	e, out := newEnv(t)

	require.NoError(t, runCommand(t, e, "export-products"))
	assert.Contains(t, out.String(), `"name":"Coffee"`)

	file := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"name":"Bagel","price":30,"stock":4}]`), 0o600))
	require.NoError(t, runCommand(t, e, "import-products", file))

	out.Reset()
	require.NoError(t, runCommand(t, e, "export-products", "-inline"))
	assert.Equal(t, `[{"name":"Bagel","price":30,"imageUrl":"","enabled":true,"stock":4,"icon":"Package"}]`, strings.TrimSpace(out.String()))

	require.NoError(t, os.WriteFile(file, []byte(`[{"price":30}]`), 0o600))
	require.Error(t, runCommand(t, e, "import-products", file))
	require.ErrorIs(t, runCommand(t, e, "import-products"), errUsage)
}

func TestExportHistory(t *testing.T) {
	e, out := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.open(ctx))
	first := e.svc.Catalog.List()[0]
	_, err := e.svc.Checkout.AdjustQuantity(ctx, first.ID, 2)
	require.NoError(t, err)
	_, err = e.svc.Checkout.Open(ctx, transaction.MethodCash)
	require.NoError(t, err)
	_, err = e.svc.Checkout.Settle(ctx)
	require.NoError(t, err)
	require.NoError(t, e.close())

	require.NoError(t, runCommand(t, e, "export-history", "-format", "csv"))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], first.Name)

	out.Reset()
	require.NoError(t, runCommand(t, e, "export-history", "-format", "csv", "-method", "qr"))
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 1)

	require.ErrorIs(t, runCommand(t, e, "export-history", "-format", "pdf"), errUsage)
	require.ErrorIs(t, runCommand(t, e, "export-history", "-method", "card"), transaction.ErrUnknownMethod)
}

func TestBackupRestore(t *testing.T) {
	e, _ := newEnv(t)
	snapshot := filepath.Join(t.TempDir(), "snap.db.gz")

	file := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"name":"Bagel","price":30}]`), 0o600))
	require.NoError(t, runCommand(t, e, "import-products", file))
	require.NoError(t, runCommand(t, e, "backup", "-o", snapshot))

	require.NoError(t, runCommand(t, e, "seed", "-force"))
	require.NoError(t, runCommand(t, e, "restore", snapshot))

	require.NoError(t, e.open(context.Background()))
	defer func() { _ = e.close() }()
	products := e.svc.Catalog.List()
	require.Len(t, products, 1)
	assert.Equal(t, "Bagel", products[0].Name)
}

func TestPrintQR(t *testing.T) {
	e, out := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.open(ctx))
	require.NoError(t, e.svc.Settings.SetBankingDetails(ctx, payment.BankingDetails{
		AccountNumber: "123456789/0800",
		RecipientName: "Cafe",
	}))
	require.NoError(t, e.close())

	require.NoError(t, runCommand(t, e, "qr", "-amount", "255"))
	assert.Contains(t, out.String(), "SPD*1.0*ACC:123456789/0800*RN:Cafe*AM:255*CC:CZK*MSG:")

	require.ErrorIs(t, runCommand(t, e, "qr", "-amount", "0"), errUsage)
}

func TestGCImages(t *testing.T) {
	e, _ := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.open(ctx))
	id := e.svc.Catalog.List()[0].ID
	_, err := e.svc.Catalog.SetImage(ctx, id, "image/png", bytes.Repeat([]byte{1}, product.DefaultInlineImageLimit+1))
	require.NoError(t, err)
	require.NoError(t, e.svc.Catalog.Delete(ctx, id))
	require.NoError(t, e.close())

	require.NoError(t, runCommand(t, e, "gc-images"))
}
