package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neverbe/pos-api/internal/catalog"
	"github.com/neverbe/pos-api/internal/upstream"
)

type fakeMethodSource struct {
	calls   int
	methods []upstream.PaymentMethod
}

func (f *fakeMethodSource) PaymentMethods(ctx context.Context) ([]upstream.PaymentMethod, error) {
	f.calls++
	return f.methods, nil
}

func backendMethods() []upstream.PaymentMethod {
	return []upstream.PaymentMethod{
		{ID: "pm-001", Name: "Cash", IsActive: true},
		{ID: "pm-002", Name: "Credit Card", FeePercent: 2.5, IsActive: true},
		{ID: "pm-006", Name: "Store Credit", FeePercent: 10, IsActive: true},
		{ID: "pm-009", Name: "Retired Wallet", IsActive: false},
	}
}

func newMethods(t *testing.T, source MethodSource) *Methods {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Methods{
		Source:              source,
		Cache:               &catalog.Cache{R: client, TTL: time.Minute},
		DeferredFeeMethodID: "pm-006",
		Log:                 zerolog.Nop(),
	}
}

func TestListFiltersAndTagsMethods(t *testing.T) {
	m := newMethods(t, &fakeMethodSource{methods: backendMethods()})

	methods, err := m.List(context.Background())
	require.NoError(t, err)
	require.Len(t, methods, 3, "inactive methods are dropped")

	byID := map[string]bool{}
	for _, method := range methods {
		byID[method.ID] = method.DeferredFee
	}
	assert.False(t, byID["pm-001"])
	assert.False(t, byID["pm-002"])
	assert.True(t, byID["pm-006"], "configured deferred-fee method must be tagged")
}

func TestListUsesCache(t *testing.T) {
	source := &fakeMethodSource{methods: backendMethods()}
	m := newMethods(t, source)
	ctx := context.Background()

	_, err := m.List(ctx)
	require.NoError(t, err)
	_, err = m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls, "second list must come from cache")
}

func TestMethodLookup(t *testing.T) {
	m := newMethods(t, &fakeMethodSource{methods: backendMethods()})
	ctx := context.Background()

	method, err := m.Method(ctx, "pm-002")
	require.NoError(t, err)
	assert.Equal(t, "Credit Card", method.Name)
	assert.True(t, method.FeePercent.Equal(decimal.NewFromFloat(2.5)))

	_, err = m.Method(ctx, "pm-404")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownMethod))

	_, err = m.Method(ctx, "pm-009")
	require.Error(t, err, "inactive methods are not resolvable")
}
