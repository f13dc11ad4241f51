package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "auth:revoked-tokens"

// RedisRegistry shares revocations between instances. Members are token digests
// scored by expiry in unix seconds, so a sweep is a single range removal.
type RedisRegistry struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client, key: defaultRedisKey, now: time.Now}
}

func (r *RedisRegistry) WithClock(now func() time.Time) *RedisRegistry {
	r.now = now
	return r
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *RedisRegistry) Blacklist(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	var score float64
	exp, hasExpiry, ok := expiryOf(token)
	switch {
	case !ok:
		// undecodable tokens go at the front of the next sweep
		score = float64(r.now().Unix())
	case !hasExpiry:
		score = math.Inf(1)
	default:
		score = float64(exp.Unix())
	}

	if err := r.client.ZAdd(ctx, r.key, redis.Z{Score: score, Member: digest(token)}).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

func (r *RedisRegistry) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	_, err := r.client.ZScore(ctx, r.key, digest(token)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return true, nil
}

func (r *RedisRegistry) Sweep(ctx context.Context) (int, error) {
	max := strconv.FormatInt(r.now().Unix(), 10)
	removed, err := r.client.ZRemRangeByScore(ctx, r.key, "-inf", max).Result()
	if err != nil {
		return 0, fmt.Errorf("sweep blacklist: %w", err)
	}
	return int(removed), nil
}

func (r *RedisRegistry) Size(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("blacklist size: %w", err)
	}
	return int(n), nil
}
