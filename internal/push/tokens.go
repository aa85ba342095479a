package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// ErrNoToken means the user never registered a device for push delivery.
var ErrNoToken = errors.New("no device token registered")

// TokenStore keeps user -> device token mappings in Redis. Tokens are
// written when the client app registers its device and read by the
// delivery worker.
type TokenStore struct {
	rdb *redis.Client
}

func NewTokenStore(rdb *redis.Client) *TokenStore {
	return &TokenStore{rdb: rdb}
}

func tokenKey(userID int64) string {
	return fmt.Sprintf("push_token:%d", userID)
}

func (s *TokenStore) Save(ctx context.Context, userID int64, token string) error {
	if err := s.rdb.Set(ctx, tokenKey(userID), token, 0).Err(); err != nil {
		return fmt.Errorf("failed to save device token: %w", err)
	}
	return nil
}

func (s *TokenStore) Token(ctx context.Context, userID int64) (string, error) {
	token, err := s.rdb.Get(ctx, tokenKey(userID)).Result()
	if err == redis.Nil {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to load device token: %w", err)
	}
	return token, nil
}

func (s *TokenStore) Delete(ctx context.Context, userID int64) error {
	return s.rdb.Del(ctx, tokenKey(userID)).Err()
}
