package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/quickpay/internal/app"
	"github.com/xenking/quickpay/internal/domain/payment"
	"github.com/xenking/quickpay/internal/domain/product"
	"github.com/xenking/quickpay/internal/domain/transaction"
	"github.com/xenking/quickpay/internal/exchange"
	"github.com/xenking/quickpay/internal/storage/bolt"
)

type env struct {
	dataFile string
	loc      *time.Location
	out      io.Writer
	svc      *app.Services
}

func (e *env) open(ctx context.Context) error {
	svc, err := app.OpenServices(ctx, e.dataFile, product.DefaultInlineImageLimit)
	if err != nil {
		return err
	}
	e.svc = svc
	return nil
}

func (e *env) close() error {
	if e.svc == nil {
		return nil
	}
	err := e.svc.Close()
	e.svc = nil
	return err
}

// output returns the file at path, or the tool's stdout when path is empty
// or "-". The returned func closes the file.
func (e *env) output(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return e.out, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create output")
	}
	return f, f.Close, nil
}

type command struct {
	name  string
	usage string
	// store is set when the command needs the store opened.
	store bool
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{name: "seed", usage: "replace the catalog with the default products (-force)", store: true, run: seed},
	{name: "export-products", usage: "write the catalog as JSON [-inline] [-o file]", store: true, run: exportProducts},
	{name: "import-products", usage: "replace the catalog from a JSON file <file>", store: true, run: importProducts},
	{name: "export-history", usage: "write sold lines [-format xlsx|csv] [-method] [-date] [-product] [-o file]", store: true, run: exportHistory},
	{name: "backup", usage: "write a gzip snapshot of the store [-o file]", store: true, run: backup},
	{name: "restore", usage: "replace the store with a snapshot <file>", run: restore},
	{name: "qr", usage: "print a payment code for -amount in the terminal", store: true, run: printQR},
	{name: "gc-images", usage: "delete stored images no product references", store: true, run: gcImages},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func seed(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("seed")
	force := fs.Bool("force", false, "overwrite the current catalog")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if !*force {
		return errors.Wrap(errUsage, "seed replaces the whole catalog, pass -force")
	}

	defaults := product.Defaults()
	drafts := make([]product.Draft, len(defaults))
	for i, p := range defaults {
		drafts[i] = product.DraftOf(p)
	}
	products, err := e.svc.Catalog.Replace(ctx, drafts)
	if err != nil {
		return errors.Wrap(err, "replace catalog")
	}
	zctx.From(ctx).Info("Catalog seeded", zap.Int("products", len(products)))
	return nil
}

func exportProducts(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("export-products")
	inline := fs.Bool("inline", false, "embed stored images as data URIs")
	out := fs.String("o", "", "output file, stdout when empty")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	w, done, err := e.output(*out)
	if err != nil {
		return err
	}
	var resolve exchange.ImageResolver
	if *inline {
		resolve = exchange.InlineImages(e.svc.Catalog.Image)
	}
	products := e.svc.Catalog.List()
	if err := exchange.ExportProducts(ctx, w, products, resolve); err != nil {
		_ = done()
		return err
	}
	if err := done(); err != nil {
		return errors.Wrap(err, "close output")
	}
	zctx.From(ctx).Info("Products exported", zap.Int("products", len(products)))
	return nil
}

func importProducts(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.Wrap(errUsage, "import-products takes one file")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrap(err, "open import file")
	}
	defer func() { _ = f.Close() }()

	drafts, err := exchange.ImportProducts(f)
	if err != nil {
		return err
	}
	products, err := e.svc.Catalog.Replace(ctx, drafts)
	if err != nil {
		return errors.Wrap(err, "replace catalog")
	}
	zctx.From(ctx).Info("Products imported", zap.Int("products", len(products)))
	return nil
}

func exportHistory(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("export-history")
	format := fs.String("format", "xlsx", "xlsx or csv")
	method := fs.String("method", "", "only this payment method (cash, qr)")
	date := fs.String("date", "", "only this day")
	productID := fs.String("product", "", "only transactions containing this product id")
	out := fs.String("o", "", "output file, stdout when empty")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	f := transaction.Filter{ProductID: *productID}
	if *method != "" && *method != "all" {
		m, err := transaction.ParseMethod(*method)
		if err != nil {
			return err
		}
		f.Method = m
	}
	if *date != "" {
		d, err := transaction.ParseDate(*date, e.loc)
		if err != nil {
			return err
		}
		f.Date = d
	}

	var write func(io.Writer, []exchange.HistoryRow) error
	switch *format {
	case "xlsx":
		write = exchange.WriteXLSX
	case "csv":
		write = exchange.WriteCSV
	default:
		return errors.Wrapf(errUsage, "unknown format %q", *format)
	}

	s := transaction.Summarize(e.svc.History.List(), f, e.loc)
	rows := exchange.Rows(s.Transactions, e.loc)

	w, done, err := e.output(*out)
	if err != nil {
		return err
	}
	if err := write(w, rows); err != nil {
		_ = done()
		return errors.Wrap(err, "write history")
	}
	if err := done(); err != nil {
		return errors.Wrap(err, "close output")
	}
	zctx.From(ctx).Info("History exported",
		zap.Int("transactions", len(s.Transactions)),
		zap.Int("rows", len(rows)),
		zap.String("revenue", s.Revenue.StringFixed(2)),
	)
	return nil
}

func backup(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("backup")
	out := fs.String("o", "", "output file, defaults to quickpay-<timestamp>.db.gz")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	path := *out
	if path == "" {
		path = "quickpay-" + time.Now().In(e.loc).Format("20060102-150405") + ".db.gz"
	}

	w, done, err := e.output(path)
	if err != nil {
		return err
	}
	n, err := e.svc.DB.Backup(w)
	if err != nil {
		_ = done()
		return err
	}
	if err := done(); err != nil {
		return errors.Wrap(err, "close output")
	}
	zctx.From(ctx).Info("Backup written", zap.String("path", path), zap.Int64("bytes", n))
	return nil
}

func restore(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.Wrap(errUsage, "restore takes one file")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrap(err, "open snapshot")
	}
	defer func() { _ = f.Close() }()

	if err := bolt.Restore(e.dataFile, f); err != nil {
		return err
	}
	zctx.From(ctx).Info("Store restored", zap.String("path", e.dataFile))
	return nil
}

func printQR(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("qr")
	amount := fs.String("amount", "", "amount to pay")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	total, err := decimal.NewFromString(*amount)
	if err != nil || !total.IsPositive() {
		return errors.Wrap(errUsage, "-amount must be a positive number")
	}

	state := e.svc.Settings
	details := state.BankingDetails()
	if details.AccountNumber == "" {
		zctx.From(ctx).Warn("Banking details are not set")
	}
	text := payment.BuildPayload(total, details, state.Message())
	payment.WriteTerminal(e.out, text)
	_, err = fmt.Fprintln(e.out, text)
	return err
}

func gcImages(ctx context.Context, e *env, _ []string) error {
	n, err := e.svc.Catalog.GCImages(ctx)
	if err != nil {
		return errors.Wrap(err, "collect images")
	}
	zctx.From(ctx).Info("Unreferenced images deleted", zap.Int("images", n))
	return nil
}
