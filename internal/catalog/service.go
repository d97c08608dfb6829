// Package catalog serves product snapshots to cashier sessions through a
// Redis read-through cache. Checkout never reads through it: stock
// validation always goes to the store.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/events"
)

// ProductReader loads a product from the system of record.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (cart.Product, error)
}

// Service resolves products for the register.
type Service struct {
	products ProductReader
	cache    *Cache
	logger   zerolog.Logger
}

// Config groups Service dependencies.
type Config struct {
	Products ProductReader
	Cache    *Cache
	Logger   zerolog.Logger
}

// NewService constructs a catalog service.
func NewService(cfg Config) *Service {
	return &Service{products: cfg.Products, cache: cfg.Cache, logger: cfg.Logger}
}

// Product returns the product snapshot for id, preferring the cache. Cache
// failures are logged and fall through to the store.
func (s *Service) Product(ctx context.Context, id string) (cart.Product, error) {
	id = strings.TrimSpace(id)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("product_id", id).Msg("catalog cache read")
		} else if ok {
			return cached, nil
		}
	}
	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return cart.Product{}, err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, product); err != nil {
			s.logger.Warn().Err(err).Str("product_id", id).Msg("catalog cache write")
		}
	}
	return product, nil
}

// Invalidate drops cached snapshots of the given products.
func (s *Service) Invalidate(ctx context.Context, ids ...string) error {
	return s.cache.Evict(ctx, ids...)
}

type committedSale struct {
	Lines []struct {
		ProductID string `json:"productId"`
	} `json:"lines"`
}

// Invalidator returns a notifier that evicts the products of every committed sale,
// so the next lookup sees the decremented stock.
func (s *Service) Invalidator() events.Notifier {
	return events.NotifierFunc(func(ctx context.Context, ev events.Event) error {
		if ev.Topic != events.TopicSaleCommitted {
			return nil
		}
		var sale committedSale
		if err := json.Unmarshal(ev.Payload, &sale); err != nil {
			return fmt.Errorf("catalog: decode sale: %w", err)
		}
		ids := make([]string, 0, len(sale.Lines))
		for _, l := range sale.Lines {
			ids = append(ids, l.ProductID)
		}
		return s.Invalidate(ctx, ids...)
	})
}
