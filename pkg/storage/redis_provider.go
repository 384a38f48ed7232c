package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisProviderConfig contains configuration for the Redis provider
type RedisProviderConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix is prepended to the per-namespace hash key
	KeyPrefix string
}

// RedisProvider stores each namespace as a hash at {prefix}{namespace}
type RedisProvider struct {
	client    redis.UniversalClient
	keyPrefix string
	ownClient bool
	timeout   time.Duration
}

// NewRedisProvider creates a Redis storage provider
func NewRedisProvider(config RedisProviderConfig) (*RedisProvider, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("redis provider requires an address")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	p := NewRedisProviderWithClient(client, config.KeyPrefix)
	p.ownClient = true
	return p, nil
}

// NewRedisProviderWithClient creates a provider on top of an existing client.
// The client is not closed by Close.
func NewRedisProviderWithClient(client redis.UniversalClient, keyPrefix string) *RedisProvider {
	if keyPrefix == "" {
		keyPrefix = "crewdeck:prefs:"
	}
	return &RedisProvider{
		client:    client,
		keyPrefix: keyPrefix,
		timeout:   5 * time.Second,
	}
}

// Initialize checks that Redis is reachable
func (p *RedisProvider) Initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close cleans up resources
func (p *RedisProvider) Close() error {
	if p.ownClient {
		return p.client.Close()
	}
	return nil
}

// GetPreferenceStore returns the store for a namespace
func (p *RedisProvider) GetPreferenceStore(namespace string) (PreferenceStore, error) {
	namespace, err := validNamespace(namespace)
	if err != nil {
		return nil, err
	}
	return &redisPreferenceStore{provider: p, key: p.keyPrefix + namespace}, nil
}

type redisPreferenceStore struct {
	provider *RedisProvider
	key      string
}

func (s *redisPreferenceStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.provider.timeout)
}

func (s *redisPreferenceStore) get(key string) (string, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	value, err := s.provider.client.HGet(ctx, s.key, key).Result()
	if err == redis.Nil {
		return "", ErrPreferenceNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read preference: %w", err)
	}
	return value, nil
}

func (s *redisPreferenceStore) GetItem(key string) (string, bool, error) {
	return lookup(s.get(key))
}

func (s *redisPreferenceStore) SetItem(key, value string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.provider.client.HSet(ctx, s.key, key, value).Err(); err != nil {
		return fmt.Errorf("failed to write preference: %w", err)
	}
	return nil
}

func (s *redisPreferenceStore) RemoveItem(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.provider.client.HDel(ctx, s.key, key).Err(); err != nil {
		return fmt.Errorf("failed to remove preference: %w", err)
	}
	return nil
}
