package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neverbe/pos-api/internal/upstream"
)

type fakeSource struct {
	stockCalls   int
	productCalls int
	searches     []string
}

func (f *fakeSource) Stocks(ctx context.Context) ([]upstream.Stock, error) {
	f.stockCalls++
	return []upstream.Stock{{ID: "stock-1", Name: "Main Store"}}, nil
}

func (f *fakeSource) Products(ctx context.Context, stockID, search string) ([]upstream.Product, error) {
	f.productCalls++
	f.searches = append(f.searches, search)
	return []upstream.Product{{ID: "it-1", Name: "Tee"}}, nil
}

func newCatalog(t *testing.T) (*Service, *fakeSource) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	source := &fakeSource{}
	return &Service{
		Source: source,
		Cache:  &Cache{R: client, TTL: time.Minute},
		Log:    zerolog.Nop(),
	}, source
}

func TestStocksCached(t *testing.T) {
	svc, source := newCatalog(t)
	ctx := context.Background()

	first, err := svc.Stocks(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.Stocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.stockCalls, "second read must hit the cache")
}

func TestProductsCachedPerStock(t *testing.T) {
	svc, source := newCatalog(t)
	ctx := context.Background()

	_, err := svc.Products(ctx, "stock-1", "")
	require.NoError(t, err)
	_, err = svc.Products(ctx, "stock-1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, source.productCalls)

	_, err = svc.Products(ctx, "stock-2", "")
	require.NoError(t, err)
	assert.Equal(t, 2, source.productCalls, "each stock location has its own cache entry")
}

func TestProductSearchBypassesCache(t *testing.T) {
	svc, source := newCatalog(t)
	ctx := context.Background()

	_, err := svc.Products(ctx, "stock-1", "tee")
	require.NoError(t, err)
	_, err = svc.Products(ctx, "stock-1", "tee")
	require.NoError(t, err)
	assert.Equal(t, 2, source.productCalls)
	assert.Equal(t, []string{"tee", "tee"}, source.searches)
}
