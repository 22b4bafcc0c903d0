package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/neverbe/pos-api/internal/upstream"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestReconcileBalancedExchange(t *testing.T) {
	returns := []Line{{Price: d("500"), Quantity: 1}}
	replacements := []Line{{Price: d("500"), Quantity: 1}}

	rec := Reconcile(returns, replacements)
	assert.True(t, rec.PriceDifference.IsZero())
	assert.False(t, rec.RequiresPayment)
	assert.False(t, rec.RefundDue)
}

func TestReconcilePaymentRequired(t *testing.T) {
	returns := []Line{{Price: d("450"), Quantity: 1}}
	replacements := []Line{{Price: d("500"), Quantity: 1}}

	rec := Reconcile(returns, replacements)
	assert.True(t, rec.PriceDifference.Equal(d("50")))
	assert.True(t, rec.RequiresPayment)
	assert.False(t, rec.RefundDue)
}

func TestReconcileRefundDue(t *testing.T) {
	returns := []Line{{Price: d("500"), Quantity: 1}}
	replacements := []Line{{Price: d("450"), Quantity: 1}}

	rec := Reconcile(returns, replacements)
	assert.True(t, rec.PriceDifference.Equal(d("-50")))
	assert.True(t, rec.RefundDue)
	assert.False(t, rec.RequiresPayment)
}

func TestReconcileDiscountsReduceTotals(t *testing.T) {
	returns := []Line{{Price: d("100"), Quantity: 2, UnitDiscount: d("10")}}
	replacements := []Line{{Price: d("90"), Quantity: 2}}

	rec := Reconcile(returns, replacements)
	assert.True(t, rec.ReturnTotal.Equal(d("180")))
	assert.True(t, rec.ReplacementTotal.Equal(d("180")))
	assert.True(t, rec.PriceDifference.IsZero())
}

func TestReturnLineQuantityRoundTrip(t *testing.T) {
	// aggregate discount 30 over 3 units -> 10 per unit
	line := NewReturnLine(upstream.OrderItem{
		ItemID: "it-1", VariantID: "v-1", Quantity: 3, Price: 100, Discount: 30,
	})
	assert.True(t, line.Total().Equal(d("270")))

	down := line.RemoveUnit()
	assert.True(t, down.Total().Equal(d("180")))

	back := down.AddUnit()
	assert.True(t, back.Total().Equal(line.Total()), "increment then decrement must restore the total")
}

func TestReturnLineBounds(t *testing.T) {
	line := NewReturnLine(upstream.OrderItem{ItemID: "it-1", Quantity: 2, Price: 100})

	atMax := line.AddUnit()
	assert.Equal(t, int64(2), atMax.Quantity, "cannot exceed purchased quantity")

	one := line.RemoveUnit()
	atMin := one.RemoveUnit()
	assert.Equal(t, int64(1), atMin.Quantity, "cannot drop below one unit")
}
