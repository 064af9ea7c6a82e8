package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gymaccess/internal/config"
	"gymaccess/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisAttemptRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisAttemptRepository(client *redis.Client, ttl time.Duration) *RedisAttemptRepository {
	return &RedisAttemptRepository{
		client: client,
		ttl:    ttl,
	}
}

func attemptKey(id string) string {
	return fmt.Sprintf("booking_attempt:%s", id)
}

func (r *RedisAttemptRepository) GetAttempt(ctx context.Context, id string) (*models.BookingAttempt, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, attemptKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt from redis: %w", err)
	}

	var attempt models.BookingAttempt
	if err := json.Unmarshal([]byte(val), &attempt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempt: %w", err)
	}

	return &attempt, nil
}

func (r *RedisAttemptRepository) SaveAttempt(ctx context.Context, attempt *models.BookingAttempt) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt: %w", err)
	}

	if err := r.client.Set(ctx, attemptKey(attempt.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set attempt in redis: %w", err)
	}

	return nil
}

func (r *RedisAttemptRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	redisKey := fmt.Sprintf("rate_limit:%s", key)
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			// a counter without expiry would block the key for good
			_ = r.client.Del(ctx, redisKey).Err()
			return false, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// AcquireLock takes a short-lived exclusive lock; false means someone else holds it.
func (r *RedisAttemptRepository) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	ok, err := r.client.SetNX(ctx, fmt.Sprintf("lock:%s", key), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return ok, nil
}

func (r *RedisAttemptRepository) ReleaseLock(ctx context.Context, key string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, fmt.Sprintf("lock:%s", key)).Err(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
