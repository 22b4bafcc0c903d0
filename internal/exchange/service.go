package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/neverbe/pos-api/internal/obs"
	"github.com/neverbe/pos-api/internal/pricing"
	"github.com/neverbe/pos-api/internal/upstream"
)

var (
	// ErrInvalidExchange is wrapped by every request validation failure.
	ErrInvalidExchange = errors.New("invalid exchange")
	// ErrNotEligible means the order is outside the exchange window.
	ErrNotEligible = errors.New("order not eligible for exchange")
	// ErrRefundNotAllowed blocks submissions where the replacements are
	// worth less than the returns. Refunds are handled at the back office.
	ErrRefundNotAllowed = errors.New("refund not allowed at the terminal")
)

// Backend is the slice of the merchant API the exchange flow needs.
type Backend interface {
	ExchangeLookup(ctx context.Context, orderID string) (upstream.ExchangeLookup, error)
	SubmitExchange(ctx context.Context, req upstream.ExchangeRequest) (upstream.ExchangeResult, error)
}

// MethodSource resolves payment methods for difference collection.
type MethodSource interface {
	Method(ctx context.Context, id string) (pricing.Method, error)
}

// PaymentInput is the tendered payment covering a positive price difference.
type PaymentInput struct {
	MethodID  string          `json:"methodId"`
	Amount    decimal.Decimal `json:"amount"`
	CardDigit string          `json:"cardDigit,omitempty"`
	RefID     string          `json:"refId,omitempty"`
}

// SubmitRequest is a complete exchange submission from the terminal.
type SubmitRequest struct {
	OrderID      string        `json:"orderId"`
	StockID      string        `json:"stockId"`
	Returns      []Line        `json:"returns"`
	Replacements []Line        `json:"replacements"`
	Payment      *PaymentInput `json:"payment,omitempty"`
}

// Service runs exchange lookups and submissions against the backend.
type Service struct {
	Backend Backend
	Methods MethodSource
	Calc    pricing.Calculator
	Log     zerolog.Logger
	Metrics *obs.DomainMetrics
}

// Lookup fetches eligibility and the original order, with return lines
// pre-derived for the terminal UI.
type LookupResult struct {
	Eligible           bool            `json:"eligible"`
	Message            string          `json:"message,omitempty"`
	WorkingDaysElapsed int             `json:"workingDaysElapsed"`
	Order              *upstream.Order `json:"order,omitempty"`
	Returnable         []Line          `json:"returnable,omitempty"`
}

// Lookup asks the backend whether the order can still be exchanged.
// Ineligible orders are a normal answer, not an error.
func (s *Service) Lookup(ctx context.Context, orderID string) (LookupResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return LookupResult{}, fmt.Errorf("%w: order id is required", ErrInvalidExchange)
	}
	if s.Metrics != nil {
		s.Metrics.ExchangesLooked.Inc()
	}
	found, err := s.Backend.ExchangeLookup(ctx, orderID)
	if err != nil {
		return LookupResult{}, err
	}
	res := LookupResult{
		Eligible:           found.Eligible,
		Message:            found.Message,
		WorkingDaysElapsed: found.WorkingDaysElapsed,
		Order:              found.Order,
	}
	if found.Eligible && found.Order != nil {
		res.Returnable = make([]Line, 0, len(found.Order.Items))
		for _, it := range found.Order.Items {
			res.Returnable = append(res.Returnable, NewReturnLine(it))
		}
	}
	return res, nil
}

// Submit validates and records an exchange. The price difference is always
// recomputed here; the client-supplied payment must cover it exactly.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (upstream.ExchangeResult, Reconciliation, error) {
	var zero upstream.ExchangeResult

	if strings.TrimSpace(req.OrderID) == "" {
		return zero, Reconciliation{}, fmt.Errorf("%w: order id is required", ErrInvalidExchange)
	}
	if len(req.Returns) == 0 {
		return zero, Reconciliation{}, fmt.Errorf("%w: at least one return line is required", ErrInvalidExchange)
	}

	found, err := s.Backend.ExchangeLookup(ctx, req.OrderID)
	if err != nil {
		return zero, Reconciliation{}, err
	}
	if !found.Eligible {
		return zero, Reconciliation{}, fmt.Errorf("%w: %s", ErrNotEligible, found.Message)
	}
	if found.Order == nil {
		return zero, Reconciliation{}, fmt.Errorf("%w: order missing from lookup", ErrInvalidExchange)
	}
	if err := validateReturns(req.Returns, found.Order.Items); err != nil {
		return zero, Reconciliation{}, err
	}
	for _, l := range req.Replacements {
		if l.Quantity <= 0 {
			return zero, Reconciliation{}, fmt.Errorf("%w: replacement quantity must be positive", ErrInvalidExchange)
		}
		if l.UnitDiscount.IsNegative() || l.UnitDiscount.GreaterThan(l.Price) {
			return zero, Reconciliation{}, fmt.Errorf("%w: replacement discount out of range", ErrInvalidExchange)
		}
	}

	rec := Reconcile(req.Returns, req.Replacements)
	if rec.RefundDue {
		s.count("refund_blocked")
		return zero, rec, fmt.Errorf("%w: difference %s", ErrRefundNotAllowed, rec.PriceDifference)
	}

	var entry *upstream.PaymentEntry
	if rec.RequiresPayment {
		if req.Payment == nil {
			return zero, rec, fmt.Errorf("%w: payment required for difference %s", ErrInvalidExchange, rec.PriceDifference)
		}
		if !req.Payment.Amount.Equal(rec.PriceDifference) {
			return zero, rec, fmt.Errorf("%w: payment %s does not match difference %s",
				ErrInvalidExchange, req.Payment.Amount, rec.PriceDifference)
		}
		method, err := s.Methods.Method(ctx, req.Payment.MethodID)
		if err != nil {
			return zero, rec, fmt.Errorf("%w: unknown payment method %q", ErrInvalidExchange, req.Payment.MethodID)
		}
		p := pricing.Payment{
			MethodID:   method.ID,
			MethodName: method.Name,
			Amount:     req.Payment.Amount,
			FeePercent: method.FeePercent,
			Deferred:   method.DeferredFee,
			CardDigit:  req.Payment.CardDigit,
			RefID:      req.Payment.RefID,
		}
		if err := s.Calc.ValidatePayment(p, method, rec.PriceDifference); err != nil {
			return zero, rec, err
		}
		entry = &upstream.PaymentEntry{
			MethodID:  method.ID,
			Method:    method.Name,
			Amount:    rec.PriceDifference.InexactFloat64(),
			CardDigit: req.Payment.CardDigit,
			RefID:     req.Payment.RefID,
		}
	} else if req.Payment != nil && req.Payment.Amount.IsPositive() {
		return zero, rec, fmt.Errorf("%w: no payment due", ErrInvalidExchange)
	}

	out := upstream.ExchangeRequest{
		OrderID:         req.OrderID,
		Returns:         toWireLines(req.Returns),
		Replacements:    toWireLines(req.Replacements),
		PriceDifference: rec.PriceDifference.InexactFloat64(),
		Payment:         entry,
		StockID:         req.StockID,
		From:            "Store",
	}
	result, err := s.Backend.SubmitExchange(ctx, out)
	if err != nil {
		s.count("error")
		return zero, rec, err
	}
	s.count("ok")
	s.Log.Info().
		Str("order_id", req.OrderID).
		Str("exchange_id", result.ExchangeID).
		Str("difference", rec.PriceDifference.String()).
		Int("returns", len(req.Returns)).
		Int("replacements", len(req.Replacements)).
		Msg("exchange submitted")
	return result, rec, nil
}

func (s *Service) count(result string) {
	if s.Metrics != nil {
		s.Metrics.ExchangesDone.WithLabelValues(result).Inc()
	}
}

func validateReturns(returns []Line, original []upstream.OrderItem) error {
	// one variant may appear in several sizes on the same order
	byLine := make(map[string]upstream.OrderItem, len(original))
	for _, it := range original {
		byLine[it.ItemID+"/"+it.VariantID+"/"+it.Size] = it
	}
	seen := make(map[string]int64, len(returns))
	for _, l := range returns {
		key := l.ItemID + "/" + l.VariantID + "/" + l.Size
		orig, ok := byLine[key]
		if !ok {
			return fmt.Errorf("%w: item %s was not on the order", ErrInvalidExchange, l.ItemID)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: return quantity must be positive", ErrInvalidExchange)
		}
		seen[key] += l.Quantity
		if seen[key] > int64(orig.Quantity) {
			return fmt.Errorf("%w: returning more of %s than was bought", ErrInvalidExchange, l.Name)
		}
	}
	return nil
}

func toWireLines(lines []Line) []upstream.ExchangeLine {
	out := make([]upstream.ExchangeLine, 0, len(lines))
	for _, l := range lines {
		qty := decimal.NewFromInt(l.Quantity)
		out = append(out, upstream.ExchangeLine{
			ItemID:      l.ItemID,
			VariantID:   l.VariantID,
			Name:        l.Name,
			VariantName: l.VariantName,
			Size:        l.Size,
			Quantity:    int(l.Quantity),
			Price:       l.Price.InexactFloat64(),
			Discount:    pricing.Round2(l.UnitDiscount.Mul(qty)).InexactFloat64(),
		})
	}
	return out
}
