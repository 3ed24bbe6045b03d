package refreshtokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/server/models"
	"github.com/go-redis/redis/v8"
)

const (
	tokenKeyPrefix = "homedock:rt:"
	userKeyPrefix  = "homedock:rt:user:"
)

// RedisRepository keeps one key per token digest with a native TTL and a
// per-user set of digests so that all sessions of a user can be dropped.
type RedisRepository struct {
	client redis.UniversalClient
}

func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

type redisToken struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func tokenKey(hash string) string { return tokenKeyPrefix + hash }
func userKey(id string) string    { return userKeyPrefix + id }

func (r *RedisRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	b, err := json.Marshal(redisToken{UserID: token.UserID, ExpiresAt: token.ExpiresAt.UTC(), CreatedAt: token.CreatedAt.UTC()})
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, tokenKey(token.TokenHash), b, ttl)
		p.SAdd(ctx, userKey(token.UserID), token.TokenHash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	b, err := r.client.Get(ctx, tokenKey(tokenHash)).Bytes()
	return decodeToken(tokenHash, b, err)
}

func (r *RedisRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.Consume(ctx, tokenHash)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return nil
}

// Consume relies on GETDEL, which is atomic on the server.
func (r *RedisRepository) Consume(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	b, err := r.client.GetDel(ctx, tokenKey(tokenHash)).Bytes()
	t, err := decodeToken(tokenHash, b, err)
	if err != nil {
		return nil, err
	}
	if err := r.client.SRem(ctx, userKey(t.UserID), tokenHash).Err(); err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return t, nil
}

func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	hashes, err := r.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, tokenKey(h))
	}

	var deleted *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = p.Del(ctx, keys...)
		}
		p.Del(ctx, userKey(userID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	if deleted == nil {
		return 0, nil
	}
	return deleted.Val(), nil
}

// DeleteExpired prunes digests whose token key already expired from the
// per-user sets. Token keys themselves expire natively.
func (r *RedisRepository) DeleteExpired(ctx context.Context, _ time.Time) (int64, error) {
	var removed int64

	iter := r.client.Scan(ctx, 0, userKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		set := iter.Val()
		hashes, err := r.client.SMembers(ctx, set).Result()
		if err != nil {
			return removed, fmt.Errorf("redis error: %w", err)
		}
		for _, h := range hashes {
			n, err := r.client.Exists(ctx, tokenKey(h)).Result()
			if err != nil {
				return removed, fmt.Errorf("redis error: %w", err)
			}
			if n == 0 {
				if err := r.client.SRem(ctx, set, h).Err(); err != nil {
					return removed, fmt.Errorf("redis error: %w", err)
				}
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis error: %w", err)
	}
	return removed, nil
}

func decodeToken(tokenHash string, b []byte, err error) (*models.RefreshToken, error) {
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	var rt redisToken
	if err := json.Unmarshal(b, &rt); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}
	return &models.RefreshToken{TokenHash: tokenHash, UserID: rt.UserID, ExpiresAt: rt.ExpiresAt, CreatedAt: rt.CreatedAt}, nil
}
