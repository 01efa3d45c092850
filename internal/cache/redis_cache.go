package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmehdipour/saas-gateway/internal/model"
	"github.com/jmehdipour/saas-gateway/internal/util"
	"github.com/redis/go-redis/v9"
)

const (
	resultPrefix = "idem:wa:res:"
	lockPrefix   = "idem:wa:lock:"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl, lockTTL time.Duration) *RedisCache {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &RedisCache{rdb: rdb, ttl: ttl, lockTTL: lockTTL}
}

var _ IdempotencyCache = (*RedisCache)(nil)

type resultValue struct {
	MessageID         string    `json:"messageId"`
	ProviderMessageID string    `json:"providerMessageId,omitempty"`
	Status            string    `json:"status"`
	Recipient         string    `json:"recipient"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (c *RedisCache) Get(ctx context.Context, key string) (*model.SendResult, error) {
	raw, err := c.rdb.Get(ctx, resultPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var v resultValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}

	return &model.SendResult{
		MessageID:         v.MessageID,
		ProviderMessageID: v.ProviderMessageID,
		Status:            model.MessageStatus(v.Status),
		Recipient:         v.Recipient,
		CreatedAt:         v.CreatedAt,
	}, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, res model.SendResult) error {
	b, err := json.Marshal(resultValue{
		MessageID:         res.MessageID,
		ProviderMessageID: res.ProviderMessageID,
		Status:            res.Status.String(),
		Recipient:         res.Recipient,
		CreatedAt:         res.CreatedAt.UTC(),
	})
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, resultPrefix+key, b, c.ttl).Err()
}

func (c *RedisCache) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	token := util.New()
	ok, err := c.rdb.SetNX(ctx, lockPrefix+key, token, c.lockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}

	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, c.rdb, []string{lockPrefix + key}, token).Err()
	}, nil
}
