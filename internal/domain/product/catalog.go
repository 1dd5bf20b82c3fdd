package product

import (
	"context"
	"encoding/base64"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultInlineImageLimit is the largest upload kept inline on the product
// record. Bigger images go to the image store.
const DefaultInlineImageLimit = 64 << 10

// StockMove is a quantity taken out of stock for one product.
type StockMove struct {
	ProductID string
	Quantity  int
}

// Catalog is the in-memory product list backed by a Repository. Every
// mutating call persists the whole list before it returns.
type Catalog struct {
	repo        Repository
	images      ImageStore
	newID       func() string
	inlineLimit int

	mu       sync.RWMutex
	products []Product
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithIDGenerator overrides product id generation.
func WithIDGenerator(f func() string) Option {
	return func(c *Catalog) { c.newID = f }
}

// WithInlineImageLimit sets the size in bytes above which uploads are moved
// to the image store.
func WithInlineImageLimit(n int) Option {
	return func(c *Catalog) { c.inlineLimit = n }
}

// NewCatalog loads the stored products, seeding and persisting the default
// list when nothing is stored yet.
func NewCatalog(ctx context.Context, repo Repository, images ImageStore, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		repo:        repo,
		images:      images,
		newID:       func() string { return uuid.New().String() },
		inlineLimit: DefaultInlineImageLimit,
	}
	for _, o := range opts {
		o(c)
	}

	products, found, err := repo.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load products")
	}
	if !found {
		products = Defaults()
		if err := repo.Save(ctx, products); err != nil {
			return nil, errors.Wrap(err, "seed products")
		}
		zctx.From(ctx).Info("Seeded default catalog", zap.Int("products", len(products)))
	}
	c.products = products
	return c, nil
}

// List returns a copy of all products in catalog order.
func (c *Catalog) List() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Product(nil), c.products...)
}

// Visible returns the enabled products.
func (c *Catalog) Visible() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the product with the given id.
func (c *Catalog) Get(id string) (Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexOf(id); i >= 0 {
		return c.products[i], nil
	}
	return Product{}, &NotFoundError{ProductID: id}
}

// Lookup is Get without the error, for price folds.
func (c *Catalog) Lookup(id string) (Product, bool) {
	p, err := c.Get(id)
	return p, err == nil
}

func (c *Catalog) indexOf(id string) int {
	for i := range c.products {
		if c.products[i].ID == id {
			return i
		}
	}
	return -1
}

// Create validates d and appends a new product with a fresh id.
func (c *Catalog) Create(ctx context.Context, d Draft) (Product, error) {
	if err := d.Validate(); err != nil {
		return Product{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := Product{ID: c.newID()}
	d.apply(&p)

	next := append(append([]Product(nil), c.products...), p)
	if err := c.repo.Save(ctx, next); err != nil {
		return Product{}, errors.Wrap(err, "save products")
	}
	c.products = next
	return p, nil
}

// Update replaces the editable fields of the product with the given id.
// A stored image that is no longer referenced is removed.
func (c *Catalog) Update(ctx context.Context, id string, d Draft) (Product, error) {
	if err := d.Validate(); err != nil {
		return Product{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return Product{}, &NotFoundError{ProductID: id}
	}

	next := append([]Product(nil), c.products...)
	old := next[i].ImageURL
	d.apply(&next[i])

	if err := c.repo.Save(ctx, next); err != nil {
		return Product{}, errors.Wrap(err, "save products")
	}
	c.products = next

	if IsImageKey(old) && old != next[i].ImageURL {
		c.dropImage(ctx, old)
	}
	return next[i], nil
}

// Delete removes the product and its stored image.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return &NotFoundError{ProductID: id}
	}
	removed := c.products[i]

	next := make([]Product, 0, len(c.products)-1)
	next = append(next, c.products[:i]...)
	next = append(next, c.products[i+1:]...)
	if err := c.repo.Save(ctx, next); err != nil {
		return errors.Wrap(err, "save products")
	}
	c.products = next

	if removed.HasStoredImage() {
		c.dropImage(ctx, removed.ImageURL)
	}
	return nil
}

// SetImage attaches an uploaded image to the product. Uploads larger than
// the inline limit are stored in the image store and referenced by key.
func (c *Catalog) SetImage(ctx context.Context, id, contentType string, data []byte) (Product, error) {
	if len(data) == 0 {
		return Product{}, &InvalidError{Err: errors.New("image: cannot be blank")}
	}
	uri := DataURI(contentType, data)

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return Product{}, &NotFoundError{ProductID: id}
	}

	ref := uri
	if len(data) > c.inlineLimit {
		ref = ImageKeyPrefix + c.newID()
		if err := c.images.PutImage(ctx, ref, uri); err != nil {
			return Product{}, errors.Wrap(err, "put image")
		}
	}

	next := append([]Product(nil), c.products...)
	old := next[i].ImageURL
	next[i].ImageURL = ref
	if err := c.repo.Save(ctx, next); err != nil {
		return Product{}, errors.Wrap(err, "save products")
	}
	c.products = next

	if IsImageKey(old) {
		c.dropImage(ctx, old)
	}
	return next[i], nil
}

// Image returns the stored image for key.
func (c *Catalog) Image(ctx context.Context, key string) (string, error) {
	return c.images.GetImage(ctx, key)
}

// Replace checks every draft against the import rules, moves inline images
// into the image store and swaps the catalog for the drafts. Nothing changes
// when any draft is invalid.
func (c *Catalog) Replace(ctx context.Context, drafts []Draft) ([]Product, error) {
	for i, d := range drafts {
		if err := d.ValidateImport(); err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Product, len(drafts))
	var stored []string
	for i, d := range drafts {
		next[i] = Product{ID: c.newID()}
		d.apply(&next[i])

		if IsInlineImage(d.ImageURL) {
			key := ImageKeyPrefix + c.newID()
			if err := c.images.PutImage(ctx, key, d.ImageURL); err != nil {
				c.dropImages(ctx, stored)
				return nil, errors.Wrap(err, "migrate image")
			}
			stored = append(stored, key)
			next[i].ImageURL = key
		}
	}

	if err := c.repo.Save(ctx, next); err != nil {
		c.dropImages(ctx, stored)
		return nil, errors.Wrap(err, "save products")
	}
	c.products = next
	return append([]Product(nil), next...), nil
}

// ApplySale takes the moves out of stock and hands the resulting product
// list to commit with the catalog write-locked. Other catalog edits wait
// until commit returns. The list is installed only when commit succeeds.
// Products that no longer exist are skipped. Stock is not floored.
func (c *Catalog) ApplySale(moves []StockMove, commit func(products []Product) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := append([]Product(nil), c.products...)
	for _, m := range moves {
		for i := range next {
			if next[i].ID == m.ProductID {
				next[i].Stock -= m.Quantity
				break
			}
		}
	}
	if err := commit(next); err != nil {
		return err
	}
	c.products = next
	return nil
}

// GCImages deletes stored images that no product references and returns
// how many were removed.
func (c *Catalog) GCImages(ctx context.Context) (int, error) {
	keys, err := c.images.ImageKeys(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list image keys")
	}

	c.mu.RLock()
	referenced := bloom.NewWithEstimates(uint(len(c.products))+64, 0.0001)
	for _, p := range c.products {
		if p.HasStoredImage() {
			referenced.AddString(p.ImageURL)
		}
	}
	c.mu.RUnlock()

	var removed int
	for _, key := range keys {
		// A negative bloom answer is exact, so only those keys are dropped.
		if referenced.TestString(key) {
			continue
		}
		if err := c.images.DeleteImage(ctx, key); err != nil {
			return removed, errors.Wrapf(err, "delete image %s", key)
		}
		removed++
	}
	return removed, nil
}

func (c *Catalog) dropImage(ctx context.Context, key string) {
	if err := c.images.DeleteImage(ctx, key); err != nil {
		zctx.From(ctx).Warn("Failed to delete image", zap.String("key", key), zap.Error(err))
	}
}

func (c *Catalog) dropImages(ctx context.Context, keys []string) {
	for _, k := range keys {
		c.dropImage(ctx, k)
	}
}

// DataURI encodes data as a base64 data URI.
func DataURI(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
