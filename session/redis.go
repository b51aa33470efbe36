package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikibot/niki/models"
)

// RedisStore persists session histories in a redis list per session.
// RPUSH preserves append order; the hosting redis enforces expiry via
// the configured TTL, refreshed on every append.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, db int, ttl time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisStore{client: rdb, ttl: ttl}
}

func historyKey(id string) string {
	return fmt.Sprintf("session:%s:turns", id)
}

func (s *RedisStore) Get(ctx context.Context, id string) ([]models.ConversationTurn, error) {
	vals, err := s.client.LRange(ctx, historyKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}
	turns := make([]models.ConversationTurn, 0, len(vals))
	for _, v := range vals {
		var turn models.ConversationTurn
		if err := json.Unmarshal([]byte(v), &turn); err != nil {
			return nil, fmt.Errorf("decoding turn in session %s: %w", id, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, turn models.ConversationTurn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encoding turn: %w", err)
	}
	key := historyKey(id)
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("appending to session %s: %w", id, err)
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("refreshing ttl for session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, historyKey(id)).Err(); err != nil {
		return fmt.Errorf("clearing session %s: %w", id, err)
	}
	return nil
}
