package exchange

import (
	"github.com/shopspring/decimal"

	"github.com/neverbe/pos-api/internal/pricing"
	"github.com/neverbe/pos-api/internal/upstream"
)

// Line is one return or replacement line. Discounts are carried per unit so
// that adjusting the quantity up and back down always lands on the same
// line total.
type Line struct {
	ItemID       string          `json:"itemId"`
	VariantID    string          `json:"variantId"`
	Name         string          `json:"name"`
	VariantName  string          `json:"variantName"`
	Size         string          `json:"size"`
	Price        decimal.Decimal `json:"price"`
	UnitDiscount decimal.Decimal `json:"unitDiscount"`
	Quantity     int64           `json:"quantity"`
	MaxQty       int64           `json:"maxQty"`
}

// NewReturnLine derives a return line from an original order item. The
// order stores an aggregate line discount; it is split evenly per unit.
func NewReturnLine(it upstream.OrderItem) Line {
	qty := int64(it.Quantity)
	unitDiscount := decimal.Zero
	if qty > 0 {
		unitDiscount = decimal.NewFromFloat(it.Discount).Div(decimal.NewFromInt(qty))
	}
	return Line{
		ItemID:       it.ItemID,
		VariantID:    it.VariantID,
		Name:         it.Name,
		VariantName:  it.VariantName,
		Size:         it.Size,
		Price:        decimal.NewFromFloat(it.Price),
		UnitDiscount: unitDiscount,
		Quantity:     qty,
		MaxQty:       qty,
	}
}

// Total is price*qty minus the per-unit discount applied to every unit.
func (l Line) Total() decimal.Decimal {
	qty := decimal.NewFromInt(l.Quantity)
	return l.Price.Mul(qty).Sub(l.UnitDiscount.Mul(qty))
}

// AddUnit returns a copy with one more unit, capped at MaxQty when set.
func (l Line) AddUnit() Line {
	if l.MaxQty > 0 && l.Quantity >= l.MaxQty {
		return l
	}
	l.Quantity++
	return l
}

// RemoveUnit returns a copy with one fewer unit, never below one.
func (l Line) RemoveUnit() Line {
	if l.Quantity <= 1 {
		return l
	}
	l.Quantity--
	return l
}

// Reconciliation is the settled balance between returns and replacements.
type Reconciliation struct {
	ReturnTotal      decimal.Decimal `json:"returnTotal"`
	ReplacementTotal decimal.Decimal `json:"replacementTotal"`
	PriceDifference  decimal.Decimal `json:"priceDifference"`
	RequiresPayment  bool            `json:"requiresPayment"`
	RefundDue        bool            `json:"refundDue"`
}

// Reconcile computes the price difference between what comes back and what
// goes out. A positive difference must be collected; a negative one means a
// refund would be owed.
func Reconcile(returns, replacements []Line) Reconciliation {
	returnTotal := decimal.Zero
	for _, l := range returns {
		returnTotal = returnTotal.Add(l.Total())
	}
	replacementTotal := decimal.Zero
	for _, l := range replacements {
		replacementTotal = replacementTotal.Add(l.Total())
	}
	diff := pricing.Round2(replacementTotal.Sub(returnTotal))
	return Reconciliation{
		ReturnTotal:      pricing.Round2(returnTotal),
		ReplacementTotal: pricing.Round2(replacementTotal),
		PriceDifference:  diff,
		RequiresPayment:  diff.IsPositive(),
		RefundDue:        diff.IsNegative(),
	}
}
