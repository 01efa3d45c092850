package cache

import (
	"context"
	"errors"

	"github.com/jmehdipour/saas-gateway/internal/model"
)

// ErrLocked is returned by Lock when another request holds the key.
var ErrLocked = errors.New("idempotency key locked")

// IdempotencyCache is the fast path in front of the message store. The
// store's unique index stays authoritative; a cache miss is never trusted as
// "not sent".
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (*model.SendResult, error)
	Put(ctx context.Context, key string, res model.SendResult) error
	// Lock claims key for one in-flight send. The returned func releases it.
	Lock(ctx context.Context, key string) (release func(context.Context) error, err error)
}
