package product

import "github.com/shopspring/decimal"

// DefaultStock is the stock of seeded products and of imported entries
// that carry no stock.
const DefaultStock = 50

// Defaults returns the seed catalog used when no products are stored yet.
func Defaults() []Product {
	seed := []struct {
		id    string
		name  string
		price string
		icon  Icon
	}{
		{"1", "Coffee", "3.50", IconCoffee},
		{"2", "Sandwich", "6.00", IconSandwich},
		{"3", "Muffin", "2.75", IconCakeSlice},
		{"4", "Juice", "4.00", IconGlassWater},
		{"5", "Salad", "7.50", IconVegan},
		{"6", "Pizza Slice", "4.25", IconPizza},
		{"7", "Croissant", "2.50", IconCroissant},
		{"8", "Tea", "3.00", IconCupSoda},
	}

	out := make([]Product, len(seed))
	for i, s := range seed {
		out[i] = Product{
			ID:      s.id,
			Name:    s.name,
			Price:   decimal.RequireFromString(s.price),
			Stock:   DefaultStock,
			Enabled: true,
			Icon:    s.icon,
		}
	}
	return out
}
