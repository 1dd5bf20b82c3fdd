package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog lookups.
var (
	ErrNotFound      = errors.New("product not found")
	ErrImageNotFound = errors.New("image not found")
)

// NotFoundError carries the id of the missing product. It matches ErrNotFound
// through errors.Is.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ImageKeyPrefix marks image references that point into the image store
// rather than carrying the image inline.
const ImageKeyPrefix = "img_"

// Product represents a sellable catalog item.
type Product struct {
	ID      string
	Name    string
	Price   decimal.Decimal
	Stock   int
	Enabled bool
	Icon    Icon
	// ImageURL is either empty, an inline data URI, an external URL, or an
	// image store key starting with ImageKeyPrefix.
	ImageURL string
}

// HasStoredImage reports whether the product image lives in the image store.
func (p Product) HasStoredImage() bool {
	return IsImageKey(p.ImageURL)
}

// IsImageKey reports whether ref is an image store key.
func IsImageKey(ref string) bool {
	return strings.HasPrefix(ref, ImageKeyPrefix)
}

// IsInlineImage reports whether ref is an inline data URI.
func IsInlineImage(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// Repository persists the full product list.
type Repository interface {
	// Load returns the stored products. The boolean is false when nothing
	// has been stored yet.
	Load(ctx context.Context) ([]Product, bool, error)
	Save(ctx context.Context, products []Product) error
}

// ImageStore is a string-keyed blob store for product photos.
type ImageStore interface {
	GetImage(ctx context.Context, key string) (string, error)
	PutImage(ctx context.Context, key, value string) error
	DeleteImage(ctx context.Context, key string) error
	ImageKeys(ctx context.Context) ([]string, error)
}
