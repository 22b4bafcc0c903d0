package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestSummarizeTotals(t *testing.T) {
	calc := NewCalculator(DefaultAbsorbedFeeShare)
	items := []LineItem{
		{Price: d("1000"), Quantity: 2, Discount: d("100")},
	}

	s := calc.Summarize(items, nil)
	assert.True(t, s.ItemsTotal.Equal(d("2000")), "items total %s", s.ItemsTotal)
	assert.True(t, s.Discount.Equal(d("100")))
	assert.True(t, s.Subtotal.Equal(d("1900")))
	assert.True(t, s.Surcharge.IsZero())
	assert.True(t, s.GrandTotal.Equal(d("1900")))
	assert.True(t, s.PendingDue.Equal(d("1900")))
}

func TestDeferredPaymentSurcharge(t *testing.T) {
	calc := NewCalculator(0.8)
	p := Payment{
		MethodID:   "pm-006",
		Amount:     d("1080"),
		FeePercent: d("10"),
		Deferred:   true,
	}

	// multiplier 1.08: base 1000, visible fee 80
	base := calc.BaseAmount(p.Amount, p.FeePercent)
	assert.True(t, Round2(base).Equal(d("1000")), "base %s", base)
	assert.True(t, calc.PaymentSurcharge(p).Equal(d("80")))

	items := []LineItem{{Price: d("1000"), Quantity: 2, Discount: d("100")}}
	s := calc.Summarize(items, []Payment{p})
	assert.True(t, s.Surcharge.Equal(d("80")))
	assert.True(t, s.GrandTotal.Equal(d("1980")))
	assert.True(t, s.PendingDue.Equal(d("900")))
}

func TestSurchargeOnlyOnDeferredWithFee(t *testing.T) {
	calc := NewCalculator(0.8)

	immediate := Payment{Amount: d("500"), FeePercent: d("10")}
	assert.True(t, calc.PaymentSurcharge(immediate).IsZero())

	freeDeferred := Payment{Amount: d("500"), Deferred: true}
	assert.True(t, calc.PaymentSurcharge(freeDeferred).IsZero())
}

func TestCollectAmount(t *testing.T) {
	calc := NewCalculator(0.8)
	items := []LineItem{{Price: d("1000"), Quantity: 2, Discount: d("100")}}

	deferred := Method{ID: "pm-006", Name: "Store Credit", FeePercent: d("10"), DeferredFee: true}
	plain := Method{ID: "pm-001", Name: "Cash"}

	assert.True(t, calc.CollectAmount(items, nil, deferred).Equal(d("2052")))
	assert.True(t, calc.CollectAmount(items, nil, plain).Equal(d("1900")))
}

func TestCollectAmountAfterPartialPayments(t *testing.T) {
	calc := NewCalculator(0.8)
	items := []LineItem{{Price: d("1000"), Quantity: 2, Discount: d("100")}}
	deferred := Method{ID: "pm-006", Name: "Store Credit", FeePercent: d("10"), DeferredFee: true}

	payments := []Payment{{MethodID: "pm-001", MethodName: "Cash", Amount: d("900")}}
	// remaining base 1000, marked up by 1.08
	assert.True(t, calc.CollectAmount(items, payments, deferred).Equal(d("1080")))

	// settling with the suggested amount leaves nothing to collect
	payments = append(payments, Payment{
		MethodID: "pm-006", Amount: d("1080"), FeePercent: d("10"), Deferred: true, RefID: "ref-1",
	})
	assert.True(t, calc.CollectAmount(items, payments, deferred).IsZero())
	assert.True(t, calc.CollectAmount(items, payments, plainCash()).IsZero())
}

func TestCollectAmountOverpaid(t *testing.T) {
	calc := NewCalculator(0.8)
	items := []LineItem{{Price: d("100"), Quantity: 1}}
	payments := []Payment{{MethodID: "pm-001", Amount: d("150")}}
	assert.True(t, calc.CollectAmount(items, payments, plainCash()).IsZero())
}

func plainCash() Method {
	return Method{ID: "pm-001", Name: "Cash"}
}

func TestValidatePayment(t *testing.T) {
	calc := NewCalculator(0.8)
	pending := d("1000")

	cases := []struct {
		name    string
		payment Payment
		method  Method
		wantErr bool
	}{
		{
			name:    "zero amount rejected",
			payment: Payment{Amount: decimal.Zero},
			method:  plainCash(),
			wantErr: true,
		},
		{
			name:    "negative amount rejected",
			payment: Payment{Amount: d("-10")},
			method:  plainCash(),
			wantErr: true,
		},
		{
			name:    "cash may exceed pending due",
			payment: Payment{Amount: d("5000")},
			method:  plainCash(),
		},
		{
			name:    "transfer within tolerance allowed",
			payment: Payment{Amount: d("1000.50")},
			method:  Method{ID: "pm-003", Name: "Bank Transfer"},
		},
		{
			name:    "transfer beyond tolerance rejected",
			payment: Payment{Amount: d("1000.51")},
			method:  Method{ID: "pm-003", Name: "Bank Transfer"},
			wantErr: true,
		},
		{
			name:    "card requires last four digits",
			payment: Payment{Amount: d("500")},
			method:  Method{ID: "pm-002", Name: "Credit Card"},
			wantErr: true,
		},
		{
			name:    "card with digits allowed",
			payment: Payment{Amount: d("500"), CardDigit: "4242"},
			method:  Method{ID: "pm-002", Name: "Credit Card"},
		},
		{
			name:    "card digits counted as characters not bytes",
			payment: Payment{Amount: d("500"), CardDigit: "４２４２"},
			method:  Method{ID: "pm-002", Name: "Credit Card"},
		},
		{
			name:    "card with five digits rejected",
			payment: Payment{Amount: d("500"), CardDigit: "42425"},
			method:  Method{ID: "pm-002", Name: "Credit Card"},
			wantErr: true,
		},
		{
			name:    "deferred requires reference",
			payment: Payment{Amount: d("500"), Deferred: true},
			method:  Method{ID: "pm-006", Name: "Store Credit", DeferredFee: true},
			wantErr: true,
		},
		{
			name:    "deferred with reference allowed even above pending",
			payment: Payment{Amount: d("2000"), Deferred: true, RefID: "ref-9"},
			method:  Method{ID: "pm-006", Name: "Store Credit", DeferredFee: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := calc.ValidatePayment(tc.payment, tc.method, pending)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidPayment))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSurchargeMonotonic(t *testing.T) {
	calc := NewCalculator(0.8)

	// grows with the fee at fixed amount
	prev := decimal.Zero
	for _, fee := range []string{"1", "2.5", "5", "10", "15"} {
		p := Payment{Amount: d("1000"), FeePercent: d(fee), Deferred: true}
		cur := calc.PaymentSurcharge(p)
		assert.True(t, cur.GreaterThan(prev), "fee %s: surcharge %s must exceed %s", fee, cur, prev)
		prev = cur
	}

	// grows with the amount at fixed fee
	prev = decimal.Zero
	for _, amount := range []string{"100", "500", "1000", "2500"} {
		p := Payment{Amount: d(amount), FeePercent: d("10"), Deferred: true}
		cur := calc.PaymentSurcharge(p)
		assert.True(t, cur.GreaterThan(prev), "amount %s: surcharge %s must exceed %s", amount, cur, prev)
		prev = cur
	}
}

func TestPendingDueSignFlipsOnOverpayment(t *testing.T) {
	calc := NewCalculator(0.8)
	items := []LineItem{{Price: d("1000"), Quantity: 1}}

	s := calc.Summarize(items, []Payment{{MethodID: "pm-001", Amount: d("600")}})
	assert.True(t, s.PendingDue.Equal(d("400")), "positive while still owed")

	s = calc.Summarize(items, []Payment{{MethodID: "pm-001", Amount: d("1000")}})
	assert.True(t, s.PendingDue.IsZero())

	// cash above the total flips the balance to change owed back
	s = calc.Summarize(items, []Payment{{MethodID: "pm-001", Amount: d("1500")}})
	assert.True(t, s.PendingDue.Equal(d("-500")))
	assert.True(t, s.PendingDue.IsNegative())
}

func TestTransactionFee(t *testing.T) {
	calc := NewCalculator(0.8)
	payments := []Payment{
		{Amount: d("1080"), FeePercent: d("10")},
		{Amount: d("900")},
		{Amount: d("333.33"), FeePercent: d("2.5")},
	}
	// 108 + 0 + 8.33325 -> 116.33
	assert.True(t, calc.TransactionFee(payments).Equal(d("116.33")))
}

func TestAbsorbedShareFallback(t *testing.T) {
	calc := NewCalculator(2.5)
	p := Payment{Amount: d("1080"), FeePercent: d("10"), Deferred: true}
	assert.True(t, calc.PaymentSurcharge(p).Equal(d("80")))
}

func TestMethodKindMatching(t *testing.T) {
	assert.True(t, Method{Name: "Cash"}.IsCash())
	assert.True(t, Method{Name: " cash "}.IsCash())
	assert.False(t, Method{Name: "Cashier Cheque"}.IsCash())
	assert.True(t, Method{Name: "Debit Card"}.IsCard())
	assert.True(t, Method{Name: "CARD"}.IsCard())
	assert.False(t, Method{Name: "Bank Transfer"}.IsCard())
}
