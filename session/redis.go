package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a Redis storage.
type RedisOptions struct {
	DisableDefaults bool
	Client          redis.UniversalClient
	Prefix          string
	TTL             time.Duration
	Timeout         time.Duration
}

// RedisStorage stores the session blob in Redis.
type RedisStorage struct {
	options RedisOptions
}

// NewRedisStorage creates a Redis-backed storage.
func NewRedisStorage(options RedisOptions) (*RedisStorage, error) {
	if options.Client == nil {
		return nil, errors.New("redis client is required")
	}
	cfg := options
	if !cfg.DisableDefaults {
		if cfg.Prefix == "" {
			cfg.Prefix = "schoolgate:sessions:"
		}
		if cfg.Timeout == 0 {
			cfg.Timeout = 2 * time.Second
		}
	}
	return &RedisStorage{options: cfg}, nil
}

// OpenRedis parses a redis:// URL and builds a storage around a new client.
func OpenRedis(url string, options RedisOptions) (*RedisStorage, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	options.Client = redis.NewClient(opts)
	return NewRedisStorage(options)
}

// Load returns the value under key.
func (s *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	value, err := s.options.Client.Get(ctx, s.options.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return value, err
}

// Save stores value under key with the configured TTL.
func (s *RedisStorage) Save(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.options.Client.Set(ctx, s.options.Prefix+key, value, s.options.TTL).Err()
}

// Delete removes key.
func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.options.Client.Del(ctx, s.options.Prefix+key).Err()
}

// Close closes the underlying client.
func (s *RedisStorage) Close() error {
	return s.options.Client.Close()
}

func (s *RedisStorage) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.options.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.options.Timeout)
}
