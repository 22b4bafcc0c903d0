package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/neverbe/pos-api/internal/cart"
	"github.com/neverbe/pos-api/internal/lock"
	"github.com/neverbe/pos-api/internal/obs"
	"github.com/neverbe/pos-api/internal/payment"
	"github.com/neverbe/pos-api/internal/pricing"
	"github.com/neverbe/pos-api/internal/upstream"
)

var (
	// ErrEmptyCart blocks order placement with nothing to sell.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientPayment blocks order placement before the captured
	// payments cover the grand total.
	ErrInsufficientPayment = errors.New("payment amount is less than total")
	// ErrOrderInProgress means another submission holds the order lock.
	ErrOrderInProgress = errors.New("order already in progress")
)

// Backend is the slice of the merchant API the checkout flow needs.
type Backend interface {
	PlaceOrder(ctx context.Context, order upstream.Order) (upstream.PlacedOrder, error)
	Order(ctx context.Context, orderID string) (upstream.Order, error)
}

// MethodSource resolves tender types.
type MethodSource interface {
	List(ctx context.Context) ([]pricing.Method, error)
	Method(ctx context.Context, id string) (pricing.Method, error)
}

// Service drives the checkout flow: totals, payment capture and order
// submission. All transient state lives in Redis keyed by cashier and
// stock location.
type Service struct {
	Cart    *cart.Service
	Drafts  *payment.Drafts
	Methods MethodSource
	Backend Backend
	Calc    pricing.Calculator
	R       *redis.Client
	LockTTL time.Duration
	Log     zerolog.Logger
	Metrics *obs.DomainMetrics

	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// View is the full checkout state returned to the terminal.
type View struct {
	InvoiceID string            `json:"invoiceId"`
	Items     []cart.Item       `json:"items"`
	Payments  []payment.Draft   `json:"payments"`
	Summary   SummaryView       `json:"summary"`
	Collect   map[string]string `json:"collect"`
}

// SummaryView is the checkout breakdown with decimal-safe string amounts.
type SummaryView struct {
	ItemsTotal    string `json:"itemsTotal"`
	Discount      string `json:"discount"`
	Subtotal      string `json:"subtotal"`
	Surcharge     string `json:"surcharge"`
	GrandTotal    string `json:"grandTotal"`
	PaymentsTotal string `json:"paymentsTotal"`
	PendingDue    string `json:"pendingDue"`
}

func toSummaryView(s pricing.Summary) SummaryView {
	return SummaryView{
		ItemsTotal:    pricing.Round2(s.ItemsTotal).String(),
		Discount:      pricing.Round2(s.Discount).String(),
		Subtotal:      pricing.Round2(s.Subtotal).String(),
		Surcharge:     pricing.Round2(s.Surcharge).String(),
		GrandTotal:    pricing.Round2(s.GrandTotal).String(),
		PaymentsTotal: pricing.Round2(s.PaymentsTotal).String(),
		PendingDue:    pricing.Round2(s.PendingDue).String(),
	}
}

func pricingItems(items []cart.Item) []pricing.LineItem {
	out := make([]pricing.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.LineItem{
			Price:    decimal.NewFromFloat(it.Price),
			Quantity: int64(it.Quantity),
			Discount: decimal.NewFromFloat(it.Discount),
		})
	}
	return out
}

func pricingPayments(drafts []payment.Draft) []pricing.Payment {
	out := make([]pricing.Payment, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, pricing.Payment{
			MethodID:   d.MethodID,
			MethodName: d.Method,
			Amount:     decimal.NewFromFloat(d.Amount),
			FeePercent: decimal.NewFromFloat(d.FeePercent),
			Deferred:   d.Deferred,
			CardDigit:  d.CardDigit,
			RefID:      d.RefID,
		})
	}
	return out
}

// Summary assembles the current checkout view, including the suggested
// collect amount per tender type.
func (s *Service) Summary(ctx context.Context, cashierID, stockID string) (View, error) {
	items, err := s.Cart.Get(ctx, cashierID, stockID)
	if err != nil {
		return View{}, err
	}
	drafts, err := s.Drafts.List(ctx, cashierID, stockID)
	if err != nil {
		return View{}, err
	}
	invoiceID, err := s.InvoiceID(ctx, cashierID, stockID)
	if err != nil {
		return View{}, err
	}

	lines := pricingItems(items)
	payments := pricingPayments(drafts)
	summary := s.Calc.Summarize(lines, payments)

	collect := map[string]string{}
	if methods, err := s.Methods.List(ctx); err == nil {
		for _, m := range methods {
			collect[m.ID] = s.Calc.CollectAmount(lines, payments, m).String()
		}
	}

	return View{
		InvoiceID: invoiceID,
		Items:     items,
		Payments:  drafts,
		Summary:   toSummaryView(summary),
		Collect:   collect,
	}, nil
}

// AddPaymentInput is a candidate payment line from the terminal.
type AddPaymentInput struct {
	MethodID  string  `json:"methodId"`
	Amount    float64 `json:"amount"`
	CardDigit string  `json:"cardDigit,omitempty"`
	RefID     string  `json:"refId,omitempty"`
}

// AddPayment validates and captures one payment line.
func (s *Service) AddPayment(ctx context.Context, cashierID, stockID string, in AddPaymentInput) (payment.Draft, error) {
	method, err := s.Methods.Method(ctx, in.MethodID)
	if err != nil {
		return payment.Draft{}, err
	}
	items, err := s.Cart.Get(ctx, cashierID, stockID)
	if err != nil {
		return payment.Draft{}, err
	}
	drafts, err := s.Drafts.List(ctx, cashierID, stockID)
	if err != nil {
		return payment.Draft{}, err
	}

	summary := s.Calc.Summarize(pricingItems(items), pricingPayments(drafts))
	candidate := pricing.Payment{
		MethodID:   method.ID,
		MethodName: method.Name,
		Amount:     decimal.NewFromFloat(in.Amount),
		FeePercent: method.FeePercent,
		Deferred:   method.DeferredFee,
		CardDigit:  in.CardDigit,
		RefID:      in.RefID,
	}
	if err := s.Calc.ValidatePayment(candidate, method, summary.PendingDue); err != nil {
		return payment.Draft{}, err
	}

	draft, err := s.Drafts.Add(ctx, cashierID, stockID, payment.Draft{
		MethodID:   method.ID,
		Method:     method.Name,
		Amount:     in.Amount,
		FeePercent: method.FeePercent.InexactFloat64(),
		Deferred:   method.DeferredFee,
		CardDigit:  in.CardDigit,
		RefID:      in.RefID,
	})
	if err != nil {
		return payment.Draft{}, err
	}
	if s.Metrics != nil {
		s.Metrics.PaymentsAdded.WithLabelValues(method.Name).Inc()
	}
	return draft, nil
}

// RemovePayment drops a captured payment line.
func (s *Service) RemovePayment(ctx context.Context, cashierID, stockID, draftID string) ([]payment.Draft, error) {
	return s.Drafts.Remove(ctx, cashierID, stockID, draftID)
}

func invoiceKey(cashierID, stockID string) string {
	return "pos:invoice:" + cashierID + ":" + stockID
}

// InvoiceID returns the invoice id for the current session, generating one
// on first use. The id is a date prefix plus six random digits.
func (s *Service) InvoiceID(ctx context.Context, cashierID, stockID string) (string, error) {
	key := invoiceKey(cashierID, stockID)
	id, err := s.R.Get(ctx, key).Result()
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("load invoice id: %w", err)
	}
	id = s.newInvoiceID()
	if err := s.R.Set(ctx, key, id, 0).Err(); err != nil {
		return "", fmt.Errorf("store invoice id: %w", err)
	}
	return id, nil
}

func (s *Service) newInvoiceID() string {
	return s.now().Format("060102") + fmt.Sprintf("%06d", rand.IntN(900000)+100000)
}

// PlaceOrder submits the order once payments cover the total, then resets
// the session. A Redis lock prevents concurrent double submission.
func (s *Service) PlaceOrder(ctx context.Context, cashierID, stockID string) (upstream.PlacedOrder, error) {
	var zero upstream.PlacedOrder

	held, err := lock.Acquire(ctx, s.R, "pos:order:"+cashierID+":"+stockID, s.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return zero, ErrOrderInProgress
		}
		return zero, fmt.Errorf("acquire order lock: %w", err)
	}
	defer func() { _ = held.Release(context.WithoutCancel(ctx)) }()

	items, err := s.Cart.Get(ctx, cashierID, stockID)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, ErrEmptyCart
	}
	drafts, err := s.Drafts.List(ctx, cashierID, stockID)
	if err != nil {
		return zero, err
	}

	payments := pricingPayments(drafts)
	summary := s.Calc.Summarize(pricingItems(items), payments)
	if summary.PaymentsTotal.LessThan(summary.GrandTotal) {
		s.countOrder("rejected")
		return zero, ErrInsufficientPayment
	}

	invoiceID, err := s.InvoiceID(ctx, cashierID, stockID)
	if err != nil {
		return zero, err
	}

	order := s.buildOrder(invoiceID, stockID, items, drafts, payments, summary)
	placed, err := s.Backend.PlaceOrder(ctx, order)
	if err != nil {
		s.countOrder("error")
		return zero, err
	}

	// reset the session; a fresh invoice id is issued on the next sale
	if err := s.Cart.Clear(ctx, cashierID, stockID); err != nil {
		s.Log.Error().Err(err).Str("order_id", order.OrderID).Msg("cart reset failed after order")
	}
	if err := s.Drafts.Clear(ctx, cashierID, stockID); err != nil {
		s.Log.Error().Err(err).Str("order_id", order.OrderID).Msg("payment reset failed after order")
	}
	if err := s.R.Del(ctx, invoiceKey(cashierID, stockID)).Err(); err != nil {
		s.Log.Error().Err(err).Str("order_id", order.OrderID).Msg("invoice reset failed after order")
	}

	s.countOrder("ok")
	if s.Metrics != nil {
		s.Metrics.OrderValue.Observe(order.Total)
	}
	s.Log.Info().
		Str("order_id", order.OrderID).
		Str("cashier_id", cashierID).
		Str("stock_id", stockID).
		Float64("total", order.Total).
		Int("items", len(order.Items)).
		Int("payments", len(order.PaymentReceived)).
		Msg("order placed")
	return placed, nil
}

func (s *Service) buildOrder(invoiceID, stockID string, items []cart.Item, drafts []payment.Draft, payments []pricing.Payment, summary pricing.Summary) upstream.Order {
	orderItems := make([]upstream.OrderItem, 0, len(items))
	for _, it := range items {
		orderItems = append(orderItems, upstream.OrderItem{
			ItemID:      it.ItemID,
			BuyPrice:    it.BuyPrice,
			VariantID:   it.VariantID,
			Name:        it.Name,
			VariantName: it.VariantName,
			Size:        it.Size,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Discount:    it.Discount,
		})
	}
	received := make([]upstream.PaymentEntry, 0, len(drafts))
	for _, d := range drafts {
		received = append(received, upstream.PaymentEntry{
			MethodID:  d.MethodID,
			Method:    d.Method,
			Amount:    d.Amount,
			CardDigit: d.CardDigit,
			RefID:     d.RefID,
		})
	}

	methodLabel := "MIXED"
	methodID := ""
	if len(drafts) == 1 {
		methodLabel = strings.ToUpper(drafts[0].Method)
		methodID = drafts[0].MethodID
	}

	return upstream.Order{
		OrderID:              strings.ToLower(invoiceID),
		Items:                orderItems,
		Fee:                  pricing.Round2(summary.Surcharge).InexactFloat64(),
		ShippingFee:          0,
		Discount:             pricing.Round2(summary.Discount).InexactFloat64(),
		PaymentReceived:      received,
		From:                 "Store",
		StockID:              stockID,
		Status:               "Completed",
		PaymentStatus:        "Paid",
		PaymentMethod:        methodLabel,
		PaymentMethodID:      methodID,
		Total:                pricing.Round2(summary.GrandTotal).InexactFloat64(),
		TransactionFeeCharge: s.Calc.TransactionFee(payments).InexactFloat64(),
	}
}

func (s *Service) countOrder(result string) {
	if s.Metrics != nil {
		s.Metrics.OrdersPlaced.WithLabelValues(result).Inc()
	}
}

// Order proxies an order lookup for the receipt screen.
func (s *Service) Order(ctx context.Context, orderID string) (upstream.Order, error) {
	return s.Backend.Order(ctx, orderID)
}
