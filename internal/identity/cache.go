package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedVerifier memoizes token lookups in Redis for a short TTL so every
// request does not round-trip to the identity provider. Cache failures fall
// through to the provider.
type CachedVerifier struct {
	next   Verifier
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedVerifier(next Verifier, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedVerifier {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedVerifier{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (v *CachedVerifier) UserFromToken(ctx context.Context, token string) (User, error) {
	key := cacheKey(token)

	raw, err := v.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var u User
		if err := json.Unmarshal(raw, &u); err == nil && u.ID != "" {
			return u, nil
		}
	} else if !errors.Is(err, redis.Nil) && v.logger != nil {
		v.logger.Warn("identity cache read failed", "err", err)
	}

	u, err := v.next.UserFromToken(ctx, token)
	if err != nil {
		return User{}, err
	}

	if raw, err := json.Marshal(u); err == nil {
		if err := v.rdb.Set(ctx, key, raw, v.ttl).Err(); err != nil && v.logger != nil {
			v.logger.Warn("identity cache write failed", "err", err)
		}
	}
	return u, nil
}

// Tokens are secrets; key on a digest, never the raw value.
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "idp:user:" + hex.EncodeToString(sum[:])
}
