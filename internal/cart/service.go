package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrInvalidItem is wrapped by cart item validation failures.
var ErrInvalidItem = errors.New("invalid cart item")

// Item is one cart line. Field names match the order wire format so lines
// flow into an order payload without remapping. Discount is the aggregate
// for the whole line, not per unit.
type Item struct {
	ItemID      string  `json:"itemId"`
	VariantID   string  `json:"variantId"`
	Name        string  `json:"name"`
	VariantName string  `json:"variantName"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Size        string  `json:"size"`
	Type        string  `json:"type,omitempty"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	BuyPrice    float64 `json:"bPrice"`
	Discount    float64 `json:"discount"`
	StockID     string  `json:"stockId"`
}

// One variant can be stocked in several sizes, so the size is part of the
// line identity.
func (it Item) key() string {
	return it.ItemID + "/" + it.VariantID + "/" + it.Size
}

func (it Item) validate() error {
	if it.ItemID == "" || it.VariantID == "" {
		return fmt.Errorf("%w: item and variant ids are required", ErrInvalidItem)
	}
	if it.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidItem)
	}
	if it.Price < 0 || it.Discount < 0 {
		return fmt.Errorf("%w: price and discount must not be negative", ErrInvalidItem)
	}
	lineTotal := decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
	if decimal.NewFromFloat(it.Discount).GreaterThan(lineTotal) {
		return fmt.Errorf("%w: discount exceeds line total", ErrInvalidItem)
	}
	return nil
}

// Service stores per-cashier carts in Redis. Carts are session state only;
// the merchant backend never sees them until an order is placed.
type Service struct {
	R   *redis.Client
	TTL time.Duration
	Log zerolog.Logger
}

func cartKey(cashierID, stockID string) string {
	return "pos:cart:" + cashierID + ":" + stockID
}

// Get returns the cart for a cashier at a stock location. A missing cart is
// an empty cart.
func (s *Service) Get(ctx context.Context, cashierID, stockID string) ([]Item, error) {
	raw, err := s.R.Get(ctx, cartKey(cashierID, stockID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return items, nil
}

func (s *Service) save(ctx context.Context, cashierID, stockID string, items []Item) error {
	key := cartKey(cashierID, stockID)
	if len(items) == 0 {
		if err := s.R.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.R.Set(ctx, key, raw, s.TTL).Err(); err != nil {
		return fmt.Errorf("store cart: %w", err)
	}
	return nil
}

// Add puts an item in the cart. An existing line for the same variant has
// its quantity and discount merged rather than duplicated.
func (s *Service) Add(ctx context.Context, cashierID, stockID string, item Item) ([]Item, error) {
	if err := item.validate(); err != nil {
		return nil, err
	}
	items, err := s.Get(ctx, cashierID, stockID)
	if err != nil {
		return nil, err
	}
	merged := false
	for i := range items {
		if items[i].key() == item.key() {
			items[i].Quantity += item.Quantity
			items[i].Discount += item.Discount
			merged = true
			break
		}
	}
	if !merged {
		item.StockID = stockID
		items = append(items, item)
	}
	if err := s.save(ctx, cashierID, stockID, items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetQuantity replaces the quantity of an existing line. The line discount
// is kept as-is; zero removes the line.
func (s *Service) SetQuantity(ctx context.Context, cashierID, stockID, itemID, variantID, size string, qty int) ([]Item, error) {
	if qty < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidItem)
	}
	items, err := s.Get(ctx, cashierID, stockID)
	if err != nil {
		return nil, err
	}
	key := itemID + "/" + variantID + "/" + size
	out := items[:0]
	found := false
	for _, it := range items {
		if it.key() == key {
			found = true
			if qty == 0 {
				continue
			}
			it.Quantity = qty
			if err := it.validate(); err != nil {
				return nil, err
			}
		}
		out = append(out, it)
	}
	if !found {
		return nil, fmt.Errorf("%w: line not in cart", ErrInvalidItem)
	}
	if err := s.save(ctx, cashierID, stockID, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes one line from the cart.
func (s *Service) Remove(ctx context.Context, cashierID, stockID, itemID, variantID, size string) ([]Item, error) {
	items, err := s.Get(ctx, cashierID, stockID)
	if err != nil {
		return nil, err
	}
	key := itemID + "/" + variantID + "/" + size
	out := items[:0]
	for _, it := range items {
		if it.key() != key {
			out = append(out, it)
		}
	}
	if err := s.save(ctx, cashierID, stockID, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Clear empties the cart entirely.
func (s *Service) Clear(ctx context.Context, cashierID, stockID string) error {
	if err := s.R.Del(ctx, cartKey(cashierID, stockID)).Err(); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
