package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDrafts(t *testing.T) *Drafts {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Drafts{R: client, TTL: time.Hour}
}

func TestDraftLifecycle(t *testing.T) {
	d := newDrafts(t)
	ctx := context.Background()

	list, err := d.List(ctx, "cashier-1", "stock-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	first, err := d.Add(ctx, "cashier-1", "stock-1", Draft{MethodID: "pm-001", Method: "Cash", Amount: 900})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := d.Add(ctx, "cashier-1", "stock-1", Draft{
		MethodID: "pm-006", Method: "Store Credit", Amount: 1080, FeePercent: 10, Deferred: true, RefID: "ref-1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	list, err = d.List(ctx, "cashier-1", "stock-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Cash", list[0].Method, "capture order is preserved")

	list, err = d.Remove(ctx, "cashier-1", "stock-1", first.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	_, err = d.Remove(ctx, "cashier-1", "stock-1", "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDraftNotFound))

	require.NoError(t, d.Clear(ctx, "cashier-1", "stock-1"))
	list, err = d.List(ctx, "cashier-1", "stock-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDraftsIsolatedPerSession(t *testing.T) {
	d := newDrafts(t)
	ctx := context.Background()

	_, err := d.Add(ctx, "cashier-1", "stock-1", Draft{MethodID: "pm-001", Amount: 100})
	require.NoError(t, err)

	other, err := d.List(ctx, "cashier-2", "stock-1")
	require.NoError(t, err)
	assert.Empty(t, other)
}
