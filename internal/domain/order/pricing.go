package order

import "github.com/shopspring/decimal"

var (
	taxRate          = decimal.RequireFromString("0.10")
	freeShippingOver = decimal.NewFromInt(100)
	flatShippingFee  = decimal.NewFromInt(10)
)

// Pricing is the financial snapshot stored on an order. Each component is
// rounded to 2 decimals independently; total is derived from the unrounded
// components and rounded once, so cents-level drift against the rounded
// components is possible.
type Pricing struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Price computes subtotal, tax (10%), shipping (free above 100, otherwise a
// flat 10), and total for the given order lines.
func Price(items []Item) Pricing {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	tax := subtotal.Mul(taxRate)

	shipping := flatShippingFee
	if subtotal.GreaterThan(freeShippingOver) {
		shipping = decimal.Zero
	}

	return Pricing{
		Subtotal: subtotal.Round(2),
		Tax:      tax.Round(2),
		Shipping: shipping.Round(2),
		Total:    subtotal.Add(tax).Add(shipping).Round(2),
	}
}
