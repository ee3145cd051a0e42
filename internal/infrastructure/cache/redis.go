package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	domain "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	defaultTTL = 15 * time.Minute
	maxJitter  = 5 // minutes
)

// RedisCache stores cart snapshots as JSON under "cart:<id>" with a jittered TTL.
type RedisCache struct {
	client  redis.Cmdable
	baseTTL time.Duration
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client, baseTTL: defaultTTL}
}

type snapshotJSON struct {
	ID            int64           `json:"id"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TotalQuantity int             `json:"total_quantity"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []itemJSON      `json:"items"`
}

type itemJSON struct {
	ID        int64 `json:"id"`
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

func (r *RedisCache) Get(ctx context.Context, cartID int64) (*domain.Snapshot, error) {
	data, err := r.client.Get(ctx, cacheKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var s snapshotJSON
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	snap := &domain.Snapshot{
		Cart: domain.Cart{
			ID:            s.ID,
			TotalPrice:    s.TotalPrice,
			TotalQuantity: s.TotalQuantity,
			UpdatedAt:     s.UpdatedAt,
		},
		Items: make([]domain.Item, 0, len(s.Items)),
	}
	for _, it := range s.Items {
		snap.Items = append(snap.Items, domain.Item{ID: it.ID, CartID: s.ID, VariantID: it.VariantID, Quantity: it.Quantity})
	}
	return snap, nil
}

func (r *RedisCache) Set(ctx context.Context, snap *domain.Snapshot) error {
	s := snapshotJSON{
		ID:            snap.Cart.ID,
		TotalPrice:    snap.Cart.TotalPrice,
		TotalQuantity: snap.Cart.TotalQuantity,
		UpdatedAt:     snap.Cart.UpdatedAt,
		Items:         make([]itemJSON, 0, len(snap.Items)),
	}
	for _, it := range snap.Items {
		s.Items = append(s.Items, itemJSON{ID: it.ID, VariantID: it.VariantID, Quantity: it.Quantity})
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(maxJitter)) * time.Minute
	if err := r.client.Set(ctx, cacheKey(snap.Cart.ID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, cartID int64) error {
	if err := r.client.Del(ctx, cacheKey(cartID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(cartID int64) string {
	return "cart:" + strconv.FormatInt(cartID, 10)
}
