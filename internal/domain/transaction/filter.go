package transaction

import (
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Filter narrows the history. Zero-valued fields do not constrain; set
// fields are combined with AND.
type Filter struct {
	Method Method
	// Date matches transactions on the same calendar day in the history
	// location.
	Date      time.Time
	ProductID string
}

// Match reports whether t satisfies every set predicate.
func (f Filter) Match(t Transaction, loc *time.Location) bool {
	if f.Method != "" && t.PaymentMethod != f.Method {
		return false
	}
	if !f.Date.IsZero() && !SameDay(t.Timestamp, f.Date, loc) {
		return false
	}
	if f.ProductID != "" && !t.hasProduct(f.ProductID) {
		return false
	}
	return true
}

func (t Transaction) hasProduct(id string) bool {
	for _, it := range t.Items {
		if it.ProductID == id {
			return true
		}
	}
	return false
}

// Summary is the filtered history with its aggregates.
type Summary struct {
	Transactions []Transaction
	Revenue      decimal.Decimal
	// ItemsSold counts only the filtered product's lines when a product
	// filter is set.
	ItemsSold int
}

// Summarize filters log and aggregates the result.
func Summarize(log []Transaction, f Filter, loc *time.Location) Summary {
	s := Summary{Transactions: []Transaction{}, Revenue: decimal.Zero}
	for _, t := range log {
		if !f.Match(t, loc) {
			continue
		}
		s.Transactions = append(s.Transactions, t)
		s.Revenue = s.Revenue.Add(t.Total)
		for _, it := range t.Items {
			if f.ProductID == "" || it.ProductID == f.ProductID {
				s.ItemsSold += it.Quantity
			}
		}
	}
	return s
}

// DailyIncome sums the totals of all transactions on date, or on the day of
// now when date is zero. Other filters do not apply.
func DailyIncome(log []Transaction, date, now time.Time, loc *time.Location) decimal.Decimal {
	day := date
	if day.IsZero() {
		day = now
	}
	income := decimal.Zero
	for _, t := range log {
		if SameDay(t.Timestamp, day, loc) {
			income = income.Add(t.Total)
		}
	}
	return income
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// ParseDate parses a free-form date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse date %q", s)
	}
	return t, nil
}
