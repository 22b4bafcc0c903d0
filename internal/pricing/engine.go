package pricing

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ErrInvalidPayment is wrapped by every payment validation failure.
var ErrInvalidPayment = errors.New("invalid payment")

// DefaultAbsorbedFeeShare is the portion of a processor fee the store eats
// rather than passing on to the customer. The remainder becomes the visible
// surcharge on deferred tenders.
const DefaultAbsorbedFeeShare = 0.8

// overpayTolerance allows a small excess on card-style tenders to absorb
// rounding on split payments.
var overpayTolerance = decimal.NewFromFloat(0.5)

// Method describes a tender type as the calculator sees it. DeferredFee
// marks methods whose processor fee is charged on settlement, which makes
// the fee partly customer-visible.
type Method struct {
	ID          string
	Name        string
	FeePercent  decimal.Decimal
	DeferredFee bool
	IsActive    bool
}

// IsCash reports whether the method settles as cash.
func (m Method) IsCash() bool {
	return strings.EqualFold(strings.TrimSpace(m.Name), "cash")
}

// IsCard reports whether the method is a card tender.
func (m Method) IsCard() bool {
	return strings.Contains(strings.ToLower(m.Name), "card")
}

// LineItem is one cart line entering the checkout totals.
type LineItem struct {
	Price    decimal.Decimal
	Quantity int64
	Discount decimal.Decimal
}

// Payment is one captured payment line.
type Payment struct {
	MethodID   string
	MethodName string
	Amount     decimal.Decimal
	FeePercent decimal.Decimal
	Deferred   bool
	CardDigit  string
	RefID      string
}

// Summary is the full checkout breakdown shown on the terminal.
type Summary struct {
	ItemsTotal    decimal.Decimal
	Discount      decimal.Decimal
	Subtotal      decimal.Decimal
	Surcharge     decimal.Decimal
	GrandTotal    decimal.Decimal
	PaymentsTotal decimal.Decimal
	PendingDue    decimal.Decimal
}

// Calculator performs all checkout arithmetic. The zero value is not usable;
// construct with NewCalculator.
type Calculator struct {
	absorbedShare decimal.Decimal
}

// NewCalculator builds a calculator with the given absorbed fee share.
// Shares outside [0,1] fall back to the default.
func NewCalculator(absorbedShare float64) Calculator {
	if absorbedShare < 0 || absorbedShare > 1 {
		absorbedShare = DefaultAbsorbedFeeShare
	}
	return Calculator{absorbedShare: decimal.NewFromFloat(absorbedShare)}
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FeeMultiplier returns 1 + (feePercent/100)*absorbedShare. Dividing a
// charged amount by it recovers the base applied against the order total.
func (c Calculator) FeeMultiplier(feePercent decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return decimal.NewFromInt(1).Add(feePercent.Div(hundred).Mul(c.absorbedShare))
}

// BaseAmount strips the customer-visible fee portion from a charged amount.
func (c Calculator) BaseAmount(amount, feePercent decimal.Decimal) decimal.Decimal {
	if feePercent.IsZero() {
		return amount
	}
	return amount.Div(c.FeeMultiplier(feePercent))
}

// PaymentSurcharge is the customer-visible fee on one payment line. Only
// deferred tenders with a positive fee carry one.
func (c Calculator) PaymentSurcharge(p Payment) decimal.Decimal {
	if !p.Deferred || !p.FeePercent.IsPositive() {
		return decimal.Zero
	}
	return Round2(p.Amount.Sub(c.BaseAmount(p.Amount, p.FeePercent)))
}

// Summarize computes the checkout breakdown for the given cart and payments.
func (c Calculator) Summarize(items []LineItem, payments []Payment) Summary {
	var s Summary
	s.ItemsTotal = decimal.Zero
	s.Discount = decimal.Zero
	for _, it := range items {
		s.ItemsTotal = s.ItemsTotal.Add(it.Price.Mul(decimal.NewFromInt(it.Quantity)))
		s.Discount = s.Discount.Add(it.Discount)
	}
	s.Subtotal = s.ItemsTotal.Sub(s.Discount)

	s.Surcharge = decimal.Zero
	s.PaymentsTotal = decimal.Zero
	for _, p := range payments {
		s.Surcharge = s.Surcharge.Add(c.PaymentSurcharge(p))
		s.PaymentsTotal = s.PaymentsTotal.Add(p.Amount)
	}
	s.GrandTotal = s.Subtotal.Add(s.Surcharge)
	s.PendingDue = s.GrandTotal.Sub(s.PaymentsTotal)
	return s
}

// pendingBase is the remaining order value before any fee markup. Deferred
// payments count at their base amount so their surcharge does not reduce
// what is still owed on the underlying goods.
func (c Calculator) pendingBase(items []LineItem, payments []Payment) decimal.Decimal {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(it.Quantity))).Sub(it.Discount)
	}
	for _, p := range payments {
		if p.Deferred && p.FeePercent.IsPositive() {
			subtotal = subtotal.Sub(c.BaseAmount(p.Amount, p.FeePercent))
		} else {
			subtotal = subtotal.Sub(p.Amount)
		}
	}
	return subtotal
}

// CollectAmount is the suggested charge for settling the remaining balance
// with the given method. For fee-deferred methods the remaining base is
// marked up by the fee multiplier so the store recovers its share.
func (c Calculator) CollectAmount(items []LineItem, payments []Payment, m Method) decimal.Decimal {
	pending := c.pendingBase(items, payments)
	if !pending.IsPositive() {
		return decimal.Zero
	}
	if !m.DeferredFee || !m.FeePercent.IsPositive() {
		return Round2(pending)
	}
	return Round2(pending.Mul(c.FeeMultiplier(m.FeePercent)))
}

// ValidatePayment checks a candidate payment line against the outstanding
// balance. pendingDue is the displayed remaining total including surcharges.
func (c Calculator) ValidatePayment(p Payment, m Method, pendingDue decimal.Decimal) error {
	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidPayment)
	}
	if !m.IsCash() && !p.Deferred {
		if p.Amount.GreaterThan(pendingDue.Add(overpayTolerance)) {
			return fmt.Errorf("%w: amount exceeds pending due", ErrInvalidPayment)
		}
	}
	if m.IsCard() && utf8.RuneCountInString(p.CardDigit) != 4 {
		return fmt.Errorf("%w: card payments require the last 4 digits", ErrInvalidPayment)
	}
	if p.Deferred && strings.TrimSpace(p.RefID) == "" {
		return fmt.Errorf("%w: deferred payments require a reference id", ErrInvalidPayment)
	}
	return nil
}

// TransactionFee is the store's total processor fee across all payments,
// independent of how much of it was passed to the customer.
func (c Calculator) TransactionFee(payments []Payment) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	total := decimal.Zero
	for _, p := range payments {
		if p.FeePercent.IsPositive() {
			total = total.Add(p.Amount.Mul(p.FeePercent).Div(hundred))
		}
	}
	return Round2(total)
}
