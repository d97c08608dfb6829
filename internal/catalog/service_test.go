package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/events"
)

type countingReader struct {
	products map[string]cart.Product
	reads    int
}

func (r *countingReader) GetProduct(_ context.Context, id string) (cart.Product, error) {
	r.reads++
	p, ok := r.products[id]
	if !ok {
		return cart.Product{}, errors.New("not found")
	}
	return p, nil
}

func setup(t *testing.T) (*Service, *countingReader, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	reader := &countingReader{products: map[string]cart.Product{
		"p1": {ID: "p1", StoreID: "s1", Name: "Kopi", Price: 15000, Stock: 4},
	}}
	svc := NewService(Config{Products: reader, Cache: NewCache(client, time.Minute), Logger: zerolog.Nop()})
	return svc, reader, mr
}

func TestProductReadThrough(t *testing.T) {
	svc, reader, mr := setup(t)
	ctx := context.Background()

	p, err := svc.Product(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 4, p.Stock)
	require.True(t, mr.Exists(productCacheKey("p1")))

	reader.products["p1"] = cart.Product{ID: "p1", Name: "Kopi", Price: 15000, Stock: 1}
	p, err = svc.Product(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 4, p.Stock)
	require.Equal(t, 1, reader.reads)

	_, err = svc.Product(ctx, "missing")
	require.Error(t, err)
}

func TestInvalidatorEvictsCommittedProducts(t *testing.T) {
	svc, reader, mr := setup(t)
	ctx := context.Background()
	_, err := svc.Product(ctx, "p1")
	require.NoError(t, err)
	reader.products["p1"] = cart.Product{ID: "p1", Name: "Kopi", Price: 15000, Stock: 2}

	payload, err := json.Marshal(map[string]any{"lines": []map[string]any{{"productId": "p1"}}})
	require.NoError(t, err)
	notifier := svc.Invalidator()

	require.NoError(t, notifier.Notify(ctx, events.Event{Topic: events.TopicCheckoutFailed, Payload: payload}))
	require.True(t, mr.Exists(productCacheKey("p1")))

	require.NoError(t, notifier.Notify(ctx, events.Event{Topic: events.TopicSaleCommitted, Payload: payload}))
	require.False(t, mr.Exists(productCacheKey("p1")))

	p, err := svc.Product(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 2, p.Stock)
}

func TestServiceWithoutRedis(t *testing.T) {
	reader := &countingReader{products: map[string]cart.Product{"p1": {ID: "p1", Stock: 3}}}
	svc := NewService(Config{Products: reader, Cache: NewCache(nil, time.Minute)})
	_, err := svc.Product(context.Background(), "p1")
	require.NoError(t, err)
	_, err = svc.Product(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, 2, reader.reads)
	require.NoError(t, svc.Invalidate(context.Background(), "p1"))
}
