package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

// keyBet espelha a chave gravada pelo bet-indexer-worker
func keyBet(betID int64) string { return "bet:" + strconv.FormatInt(betID, 10) }

func (c *Cache) GetBet(ctx context.Context, betID int64, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyBet(betID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) SetBet(ctx context.Context, betID int64, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, keyBet(betID), b, ttl).Err()
}
