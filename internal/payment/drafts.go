package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrDraftNotFound is returned when removing a payment line that does not
// exist in the session.
var ErrDraftNotFound = errors.New("payment not found")

// Draft is one payment line captured during checkout but not yet submitted
// with an order.
type Draft struct {
	ID         string  `json:"id"`
	MethodID   string  `json:"methodId"`
	Method     string  `json:"method"`
	Amount     float64 `json:"amount"`
	FeePercent float64 `json:"feePercent"`
	Deferred   bool    `json:"deferred"`
	CardDigit  string  `json:"cardDigit,omitempty"`
	RefID      string  `json:"refId,omitempty"`
}

// Drafts stores in-progress payment lines per cashier and stock location.
type Drafts struct {
	R   *redis.Client
	TTL time.Duration
}

func draftsKey(cashierID, stockID string) string {
	return "pos:payments:" + cashierID + ":" + stockID
}

// List returns the captured payment lines in capture order.
func (d *Drafts) List(ctx context.Context, cashierID, stockID string) ([]Draft, error) {
	raw, err := d.R.Get(ctx, draftsKey(cashierID, stockID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Draft{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	var drafts []Draft
	if err := json.Unmarshal(raw, &drafts); err != nil {
		return nil, fmt.Errorf("decode payments: %w", err)
	}
	return drafts, nil
}

func (d *Drafts) save(ctx context.Context, cashierID, stockID string, drafts []Draft) error {
	key := draftsKey(cashierID, stockID)
	if len(drafts) == 0 {
		if err := d.R.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("clear payments: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(drafts)
	if err != nil {
		return fmt.Errorf("encode payments: %w", err)
	}
	if err := d.R.Set(ctx, key, raw, d.TTL).Err(); err != nil {
		return fmt.Errorf("store payments: %w", err)
	}
	return nil
}

// Add appends a payment line and assigns it an id.
func (d *Drafts) Add(ctx context.Context, cashierID, stockID string, draft Draft) (Draft, error) {
	drafts, err := d.List(ctx, cashierID, stockID)
	if err != nil {
		return Draft{}, err
	}
	draft.ID = uuid.NewString()
	drafts = append(drafts, draft)
	if err := d.save(ctx, cashierID, stockID, drafts); err != nil {
		return Draft{}, err
	}
	return draft, nil
}

// Remove deletes one payment line by id.
func (d *Drafts) Remove(ctx context.Context, cashierID, stockID, draftID string) ([]Draft, error) {
	drafts, err := d.List(ctx, cashierID, stockID)
	if err != nil {
		return nil, err
	}
	out := drafts[:0]
	found := false
	for _, dr := range drafts {
		if dr.ID == draftID {
			found = true
			continue
		}
		out = append(out, dr)
	}
	if !found {
		return nil, ErrDraftNotFound
	}
	if err := d.save(ctx, cashierID, stockID, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Clear drops every captured payment line for the session.
func (d *Drafts) Clear(ctx context.Context, cashierID, stockID string) error {
	if err := d.R.Del(ctx, draftsKey(cashierID, stockID)).Err(); err != nil {
		return fmt.Errorf("clear payments: %w", err)
	}
	return nil
}
