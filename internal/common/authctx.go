package common

import "context"

type ctxKey string

const cashierIDKey ctxKey = "auth/cashier-id"

// WithCashierID stores the authenticated cashier identifier on the context.
func WithCashierID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cashierIDKey, id)
}

// CashierID extracts the authenticated cashier identifier from the context.
func CashierID(ctx context.Context) (string, bool) {
	v := ctx.Value(cashierIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
