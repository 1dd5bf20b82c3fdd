package product

import (
	"strings"

	"github.com/go-faster/errors"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"
)

// ErrInvalid is matched by every validation failure of a product draft.
var ErrInvalid = errors.New("invalid product")

// InvalidError wraps field-level validation errors.
type InvalidError struct {
	Err error
}

func (e *InvalidError) Error() string { return "invalid product: " + e.Err.Error() }

func (e *InvalidError) Unwrap() error { return e.Err }

func (e *InvalidError) Is(target error) bool { return target == ErrInvalid }

// Draft holds the user-editable product fields.
type Draft struct {
	Name     string
	Price    decimal.Decimal
	Stock    int
	Enabled  bool
	Icon     Icon
	ImageURL string
}

// Validate checks the product form rules: a name of at least two characters,
// a positive price and a non-negative stock.
func (d Draft) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Length(2, 0)),
		validation.Field(&d.Price, validation.By(positiveDecimal)),
		validation.Field(&d.Stock, validation.Min(0)),
	)
	if err != nil {
		return &InvalidError{Err: err}
	}
	return nil
}

// ValidateImport checks the looser rules for imported entries: a non-blank
// name, a price of at least zero and a non-negative stock.
func (d Draft) ValidateImport() error {
	d.Name = strings.TrimSpace(d.Name)
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.Price, validation.By(nonNegativeDecimal)),
		validation.Field(&d.Stock, validation.Min(0)),
	)
	if err != nil {
		return &InvalidError{Err: err}
	}
	return nil
}

func positiveDecimal(value interface{}) error {
	v, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal")
	}
	if !v.IsPositive() {
		return errors.New("must be a positive number")
	}
	return nil
}

// DraftOf returns the editable fields of p.
func DraftOf(p Product) Draft {
	return Draft{
		Name:     p.Name,
		Price:    p.Price,
		Stock:    p.Stock,
		Enabled:  p.Enabled,
		Icon:     p.Icon,
		ImageURL: p.ImageURL,
	}
}

func (d Draft) apply(p *Product) {
	p.Name = strings.TrimSpace(d.Name)
	p.Price = d.Price
	p.Stock = d.Stock
	p.Enabled = d.Enabled
	p.Icon = d.Icon
	p.ImageURL = d.ImageURL
}

func nonNegativeDecimal(value interface{}) error {
	v, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal")
	}
	if v.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}
