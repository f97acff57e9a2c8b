package mockhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/techfala/ia-wizard/backend/internal/model/chat"
)

const (
	defaultHistoryLimit = 40
	defaultHistoryTTL   = 24 * time.Hour
)

// Profile is what the backend remembers about a user besides the conversation.
type Profile struct {
	Personality string    `json:"personality,omitempty"`
	SessionID   string    `json:"sessionId,omitempty"`
	Number      string    `json:"number,omitempty"`
	Prompt      string    `json:"prompt,omitempty"`
	Phones      []string  `json:"phones,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store keeps per-user conversation memory and profile.
type Store interface {
	Append(ctx context.Context, userID string, msgs ...chat.Message) error
	History(ctx context.Context, userID string) ([]chat.Message, error)
	LoadProfile(ctx context.Context, userID string) (Profile, error)
	SaveProfile(ctx context.Context, userID string, p Profile) error
}

// RedisStore keeps history in a capped list and the profile in a JSON string,
// both expiring after ttl.
type RedisStore struct {
	redis *redis.Client
	limit int64
	ttl   time.Duration
}

func NewRedisStore(client *redis.Client, limit int, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("mockhook: redis client cannot be nil")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if ttl <= 0 {
		ttl = defaultHistoryTTL
	}
	return &RedisStore{redis: client, limit: int64(limit), ttl: ttl}
}

func historyKey(userID string) string { return fmt.Sprintf("mockhook:history:%s", userID) }

func profileKey(userID string) string { return fmt.Sprintf("mockhook:profile:%s", userID) }

func (s *RedisStore) Append(ctx context.Context, userID string, msgs ...chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("mockhook: marshal message: %w", err)
		}
		values = append(values, data)
	}

	key := historyKey(userID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, -s.limit, -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mockhook: append history: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, userID string) ([]chat.Message, error) {
	raw, err := s.redis.LRange(ctx, historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("mockhook: load history: %w", err)
	}
	out := make([]chat.Message, 0, len(raw))
	for _, item := range raw {
		var m chat.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("mockhook: decode history: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStore) LoadProfile(ctx context.Context, userID string) (Profile, error) {
	data, err := s.redis.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Profile{}, nil
		}
		return Profile{}, fmt.Errorf("mockhook: load profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("mockhook: decode profile: %w", err)
	}
	return p, nil
}

func (s *RedisStore) SaveProfile(ctx context.Context, userID string, p Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("mockhook: marshal profile: %w", err)
	}
	if err := s.redis.Set(ctx, profileKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("mockhook: save profile: %w", err)
	}
	return nil
}

// MemoryStore is the Redis-less fallback. Entries never expire.
type MemoryStore struct {
	limit int

	mu       sync.RWMutex
	history  map[string][]chat.Message
	profiles map[string]Profile
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &MemoryStore{
		limit:    limit,
		history:  make(map[string][]chat.Message),
		profiles: make(map[string]Profile),
	}
}

func (s *MemoryStore) Append(_ context.Context, userID string, msgs ...chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := append(s.history[userID], msgs...)
	if len(h) > s.limit {
		h = append([]chat.Message(nil), h[len(h)-s.limit:]...)
	}
	s.history[userID] = h
	return nil
}

func (s *MemoryStore) History(_ context.Context, userID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.Message{}, s.history[userID]...), nil
}

func (s *MemoryStore) LoadProfile(_ context.Context, userID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[userID], nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, userID string, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = p
	return nil
}

// OpenStore connects to Redis when redisURL is set and falls back to memory otherwise.
func OpenStore(ctx context.Context, redisURL string, limit int, ttl time.Duration) (Store, func() error, error) {
	if redisURL == "" {
		return NewMemoryStore(limit), func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("mockhook: parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("mockhook: ping redis: %w", err)
	}
	return NewRedisStore(client, limit, ttl), client.Close, nil
}
