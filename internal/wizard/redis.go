package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps wizard state in redis with a TTL, which makes
// abandoned flows expire without a sweeper.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

type redisState struct {
	UserID    int64           `json:"userId"`
	Step      Step            `json:"step"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewRedisRepository creates a redis-backed repository. A non-positive
// ttl stores rows without expiry.
func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func wizardKey(chatID int64) string {
	return fmt.Sprintf("wizard:%d", chatID)
}

func (r *RedisRepository) Load(ctx context.Context, chatID int64) (*State, error) {
	raw, err := r.client.Get(ctx, wizardKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load wizard %d: %w", chatID, err)
	}

	var rs redisState
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("decode wizard %d: %w", chatID, err)
	}
	st := &State{ChatID: chatID, UserID: rs.UserID, Step: rs.Step, UpdatedAt: rs.UpdatedAt}
	if err := st.DecodeData(rs.Data); err != nil {
		return nil, fmt.Errorf("decode wizard data %d: %w", chatID, err)
	}
	return st, nil
}

func (r *RedisRepository) Save(ctx context.Context, state *State) error {
	data, err := state.EncodeData()
	if err != nil {
		return fmt.Errorf("encode wizard data %d: %w", state.ChatID, err)
	}
	raw, err := json.Marshal(redisState{
		UserID:    state.UserID,
		Step:      state.Step,
		Data:      data,
		UpdatedAt: state.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode wizard %d: %w", state.ChatID, err)
	}

	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, wizardKey(state.ChatID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save wizard %d: %w", state.ChatID, err)
	}
	return nil
}

func (r *RedisRepository) Clear(ctx context.Context, chatID int64) error {
	if err := r.client.Del(ctx, wizardKey(chatID)).Err(); err != nil {
		return fmt.Errorf("clear wizard %d: %w", chatID, err)
	}
	return nil
}
