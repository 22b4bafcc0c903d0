package catalog

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/neverbe/pos-api/internal/obs"
	"github.com/neverbe/pos-api/internal/upstream"
)

// Source is the slice of the merchant API the catalog proxy needs.
type Source interface {
	Stocks(ctx context.Context) ([]upstream.Stock, error)
	Products(ctx context.Context, stockID, search string) ([]upstream.Product, error)
}

// Service proxies catalog reads to the merchant backend with a Redis cache
// in front. Search queries bypass the cache; browsing the full list for a
// stock location is the hot path worth caching.
type Service struct {
	Source  Source
	Cache   *Cache
	Log     zerolog.Logger
	Metrics *obs.DomainMetrics
}

// Stocks lists store locations, cached.
func (s *Service) Stocks(ctx context.Context) ([]upstream.Stock, error) {
	const key = "pos:cache:stocks"
	var cached []upstream.Stock
	if s.Cache != nil {
		err := s.Cache.GetJSON(ctx, key, &cached)
		if err == nil {
			s.observe("stocks", "hit")
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.Log.Warn().Err(err).Msg("stock cache read failed")
		}
	}
	s.observe("stocks", "miss")

	stocks, err := s.Source.Stocks(ctx)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.SetJSON(ctx, key, stocks); err != nil {
			s.Log.Warn().Err(err).Msg("stock cache write failed")
		}
	}
	return stocks, nil
}

// Products lists catalog entries for a stock location. Only unfiltered
// listings are cached.
func (s *Service) Products(ctx context.Context, stockID, search string) ([]upstream.Product, error) {
	key := "pos:cache:products:" + stockID
	if search == "" && s.Cache != nil {
		var cached []upstream.Product
		err := s.Cache.GetJSON(ctx, key, &cached)
		if err == nil {
			s.observe("products", "hit")
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.Log.Warn().Err(err).Msg("product cache read failed")
		}
	}
	s.observe("products", "miss")

	products, err := s.Source.Products(ctx, stockID, search)
	if err != nil {
		return nil, err
	}
	if search == "" && s.Cache != nil {
		if err := s.Cache.SetJSON(ctx, key, products); err != nil {
			s.Log.Warn().Err(err).Msg("product cache write failed")
		}
	}
	return products, nil
}

func (s *Service) observe(cache, outcome string) {
	if s.Metrics != nil {
		s.Metrics.CacheHits.WithLabelValues(cache, outcome).Inc()
	}
}
