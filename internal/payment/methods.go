package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/neverbe/pos-api/internal/catalog"
	"github.com/neverbe/pos-api/internal/obs"
	"github.com/neverbe/pos-api/internal/pricing"
	"github.com/neverbe/pos-api/internal/upstream"
)

// ErrUnknownMethod is returned when a method id cannot be resolved.
var ErrUnknownMethod = errors.New("unknown payment method")

const methodsCacheKey = "pos:cache:payment_methods"

// MethodSource is the slice of the merchant API the method loader needs.
type MethodSource interface {
	PaymentMethods(ctx context.Context) ([]upstream.PaymentMethod, error)
}

// Methods loads tender types from the merchant backend and tags the one
// whose processor fee settles deferred. The tagging lives in config, not in
// a hardcoded id check scattered through the checkout flow.
type Methods struct {
	Source              MethodSource
	Cache               *catalog.Cache
	DeferredFeeMethodID string
	Log                 zerolog.Logger
	Metrics             *obs.DomainMetrics
}

// List returns the active tender types in display order.
func (m *Methods) List(ctx context.Context) ([]pricing.Method, error) {
	var raw []upstream.PaymentMethod
	if m.Cache != nil {
		err := m.Cache.GetJSON(ctx, methodsCacheKey, &raw)
		if err == nil {
			m.observe("hit")
			return m.convert(raw), nil
		}
		if !errors.Is(err, catalog.ErrCacheMiss) {
			m.Log.Warn().Err(err).Msg("payment method cache read failed")
		}
	}
	m.observe("miss")

	raw, err := m.Source.PaymentMethods(ctx)
	if err != nil {
		return nil, err
	}
	if m.Cache != nil {
		if err := m.Cache.SetJSON(ctx, methodsCacheKey, raw); err != nil {
			m.Log.Warn().Err(err).Msg("payment method cache write failed")
		}
	}
	return m.convert(raw), nil
}

// Method resolves one active method by id.
func (m *Methods) Method(ctx context.Context, id string) (pricing.Method, error) {
	methods, err := m.List(ctx)
	if err != nil {
		return pricing.Method{}, err
	}
	for _, method := range methods {
		if method.ID == id {
			return method, nil
		}
	}
	return pricing.Method{}, fmt.Errorf("%w: %s", ErrUnknownMethod, id)
}

func (m *Methods) convert(raw []upstream.PaymentMethod) []pricing.Method {
	out := make([]pricing.Method, 0, len(raw))
	for _, pm := range raw {
		if !pm.IsActive {
			continue
		}
		out = append(out, pricing.Method{
			ID:          pm.ID,
			Name:        pm.Name,
			FeePercent:  decimal.NewFromFloat(pm.FeePercent),
			DeferredFee: pm.ID == m.DeferredFeeMethodID,
			IsActive:    true,
		})
	}
	return out
}

func (m *Methods) observe(outcome string) {
	if m.Metrics != nil {
		m.Metrics.CacheHits.WithLabelValues("payment_methods", outcome).Inc()
	}
}
