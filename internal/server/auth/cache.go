package auth

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const cacheKeyPrefix = "identity:"

// CachedProvider keeps validated identities in Redis for ttl so repeated
// requests with the same token skip the identity service. Raw tokens are
// never stored; keys are blake2b digests.
type CachedProvider struct {
	next   IdentityProvider
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logging.Logger
}

func NewCachedProvider(next IdentityProvider, rdb redis.Cmdable, ttl time.Duration, l logging.Logger) *CachedProvider {
	return &CachedProvider{next: next, rdb: rdb, ttl: ttl, logger: l.With("module", "identity_cache")}
}

func cacheKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (p *CachedProvider) Validate(ctx context.Context, token string) (*models.Identity, error) {
	key := cacheKey(token)

	raw, err := p.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var id models.Identity
		if err := json.Unmarshal(raw, &id); err == nil {
			return &id, nil
		}
		p.logger.Warn(ctx, "dropping malformed cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		p.logger.Warn(ctx, "identity cache read failed", "error", err)
	}

	id, err := p.next.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(id); err == nil {
		if err := p.rdb.Set(ctx, key, b, p.ttl).Err(); err != nil {
			p.logger.Warn(ctx, "identity cache write failed", "error", err)
		}
	}
	return id, nil
}
