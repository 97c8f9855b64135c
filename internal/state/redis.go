package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ipmonitor/internal/types"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisKey is the key used when none is configured
	DefaultRedisKey = "ipmonitor:last_ip"

	// DefaultDialTimeout bounds connection attempts
	DefaultDialTimeout = 5 * time.Second
)

// RedisConfig represents the redis state backend configuration
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Key         string        `mapstructure:"key"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// RedisStore keeps state under a single redis key
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisClient creates a client from cfg. It does not dial; an unreachable
// server surfaces as Load and Save errors.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     2,
	}), nil
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Describe implements Store
func (s *RedisStore) Describe() string { return "redis:" + s.key }

// Load implements Store
func (s *RedisStore) Load(ctx context.Context) (*types.PersistedState, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state key: %w", err)
	}
	return decode(data)
}

// Save implements Store. A single SET replaces the value atomically.
func (s *RedisStore) Save(ctx context.Context, st types.PersistedState) error {
	data, err := encode(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write state key: %w", err)
	}
	return nil
}

// Ping checks connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connect error: %w", err)
	}
	return nil
}

// Close releases the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
