// Package exchange moves catalog and history data in and out of the store as
// files: product lists as JSON, sales history as a spreadsheet or CSV.
package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/quickpay/internal/domain/product"
)

// ErrMalformed is matched by every import failure caused by file contents.
var ErrMalformed = errors.New("malformed import file")

// EntryError reports the first invalid entry of an import file.
type EntryError struct {
	Index  int
	Reason string
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d: %s", e.Index, e.Reason)
}

func (e *EntryError) Is(target error) bool { return target == ErrMalformed }

// ImageResolver maps a stored image reference to the data written into an
// export. Returning ref unchanged keeps the reference.
type ImageResolver func(ctx context.Context, ref string) (string, error)

// ImageLoader reads a stored image by key.
type ImageLoader func(ctx context.Context, key string) (string, error)

// InlineImages returns a resolver that replaces image store keys with the
// stored data URI, so the export can be imported into another store.
// Missing images export as no image.
func InlineImages(load ImageLoader) ImageResolver {
	return func(ctx context.Context, ref string) (string, error) {
		if !product.IsImageKey(ref) {
			return ref, nil
		}
		v, err := load(ctx, ref)
		if errors.Is(err, product.ErrImageNotFound) {
			return "", nil
		}
		return v, err
	}
}

// ExportProducts writes products as a JSON array of
// {name, price, imageUrl, enabled, stock, icon}. resolve may be nil.
func ExportProducts(ctx context.Context, w io.Writer, products []product.Product, resolve ImageResolver) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, p := range products {
		image := p.ImageURL
		if resolve != nil && image != "" {
			var err error
			if image, err = resolve(ctx, image); err != nil {
				return errors.Wrapf(err, "resolve image of %s", p.ID)
			}
		}

		e.ObjStart()
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("price")
		e.Num(jx.Num(p.Price.String()))
		e.FieldStart("imageUrl")
		e.Str(image)
		e.FieldStart("enabled")
		e.Bool(p.Enabled)
		e.FieldStart("stock")
		e.Int(p.Stock)
		e.FieldStart("icon")
		e.Str(p.Icon.String())
		e.ObjEnd()
	}
	e.ArrEnd()

	if _, err := w.Write(e.Bytes()); err != nil {
		return errors.Wrap(err, "write products")
	}
	return nil
}

// ImportProducts decodes a product file into drafts. Each entry needs a
// non-blank name and a numeric price of at least zero. Enabled defaults to
// true and stock to product.DefaultStock. Any invalid entry fails the whole
// file.
func ImportProducts(r io.Reader) ([]product.Draft, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read import file")
	}
	raw = bytes.TrimSpace(raw)

	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Array {
		return nil, &EntryError{Index: -1, Reason: "expected a JSON array"}
	}

	var drafts []product.Draft
	idx := 0
	err = d.Arr(func(d *jx.Decoder) error {
		draft, err := decodeDraft(d, idx)
		if err != nil {
			return err
		}
		drafts = append(drafts, draft)
		idx++
		return nil
	})
	if err != nil {
		var entryErr *EntryError
		if errors.As(err, &entryErr) {
			return nil, entryErr
		}
		return nil, &EntryError{Index: idx, Reason: err.Error()}
	}

	for i, draft := range drafts {
		if err := draft.ValidateImport(); err != nil {
			return nil, &EntryError{Index: i, Reason: err.Error()}
		}
	}
	return drafts, nil
}

func decodeDraft(d *jx.Decoder, idx int) (product.Draft, error) {
	if d.Next() != jx.Object {
		return product.Draft{}, &EntryError{Index: idx, Reason: "expected an object"}
	}

	draft := product.Draft{Enabled: true, Stock: product.DefaultStock}
	var hasName, hasPrice bool
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			if d.Next() != jx.String {
				return &EntryError{Index: idx, Reason: "name must be a string"}
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			draft.Name = v
			hasName = true
		case "price":
			if d.Next() != jx.Number {
				return &EntryError{Index: idx, Reason: "price must be a number"}
			}
			n, err := d.Num()
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(n.String())
			if err != nil {
				return &EntryError{Index: idx, Reason: "price must be a number"}
			}
			draft.Price = price
			hasPrice = true
		case "imageUrl":
			if d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			draft.ImageURL = v
		case "enabled":
			if d.Next() != jx.Bool {
				return d.Skip()
			}
			v, err := d.Bool()
			if err != nil {
				return err
			}
			draft.Enabled = v
		case "stock":
			if d.Next() != jx.Number {
				return d.Skip()
			}
			v, err := d.Int()
			if err != nil {
				return &EntryError{Index: idx, Reason: "stock must be an integer"}
			}
			draft.Stock = v
		case "icon":
			if d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			draft.Icon = product.LookupIcon(v)
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return product.Draft{}, err
	}

	switch {
	case !hasName:
		return product.Draft{}, &EntryError{Index: idx, Reason: "missing name"}
	case !hasPrice:
		return product.Draft{}, &EntryError{Index: idx, Reason: "missing price"}
	}
	return draft, nil
}
