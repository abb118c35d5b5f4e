package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shenwilly/ubi-games/internal/bet-indexer/repo"
)

// RedisCache encapsula o cache da projeção de apostas no Redis
// Client: cliente Redis
// TTL: tempo de expiração dos registros
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// Key gera a chave Redis para o estado atual de uma aposta
func Key(betID int64) string {
	return "bet:" + strconv.FormatInt(betID, 10)
}

// SetCurrent armazena a linha merged da aposta no Redis com TTL definido
func (r *RedisCache) SetCurrent(ctx context.Context, row *repo.BetRow) error {
	b, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, Key(row.BetID), b, r.TTL).Err()
}
