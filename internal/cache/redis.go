package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/eventhub/internal/models"
)

var errStaleHistory = errors.New("history invalidated during fill")

// RedisHistoryCache keeps each user's payment history as a JSON blob.
type RedisHistoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// ConnectRedis dials addr and verifies the connection.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}

	log.Printf("[Cache] Redis connected at %s", addr)
	return client, nil
}

// NewRedisHistoryCache wraps client. Entries expire after ttl.
func NewRedisHistoryCache(client *redis.Client, ttl time.Duration) *RedisHistoryCache {
	return &RedisHistoryCache{client: client, ttl: ttl}
}

// HistoryKey is the redis key holding userID's payment history.
func HistoryKey(userID uuid.UUID) string {
	return "payments:" + userID.String()
}

// VersionKey is the redis key counting invalidations of userID's history.
func VersionKey(userID uuid.UUID) string {
	return HistoryKey(userID) + ":version"
}

// Get returns the cached history and the invalidation version observed before
// reading it. Any redis or decode error is a miss with version -1, which Set
// refuses to store against.
func (c *RedisHistoryCache) Get(ctx context.Context, userID uuid.UUID) ([]models.Payment, int64, bool) {
	version, err := c.client.Get(ctx, VersionKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("[Cache] get %s: %v", VersionKey(userID), err)
		return nil, -1, false
	}

	raw, err := c.client.Get(ctx, HistoryKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[Cache] get %s: %v", HistoryKey(userID), err)
			return nil, -1, false
		}
		return nil, version, false
	}

	var payments []models.Payment
	if err := json.Unmarshal(raw, &payments); err != nil {
		log.Printf("[Cache] decode %s: %v", HistoryKey(userID), err)
		return nil, version, false
	}
	return payments, version, true
}

// Set stores payments for userID unless the history was invalidated after
// version was read.
func (c *RedisHistoryCache) Set(ctx context.Context, userID uuid.UUID, version int64, payments []models.Payment) {
	if version < 0 {
		return
	}

	raw, err := json.Marshal(payments)
	if err != nil {
		log.Printf("[Cache] encode %s: %v", HistoryKey(userID), err)
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, VersionKey(userID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleHistory
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, HistoryKey(userID), raw, c.ttl)
			return nil
		})
		return err
	}, VersionKey(userID))

	switch {
	case err == nil, errors.Is(err, errStaleHistory), errors.Is(err, redis.TxFailedErr):
	default:
		log.Printf("[Cache] set %s: %v", HistoryKey(userID), err)
	}
}

// Invalidate drops the cached history for userID and bumps its version so
// fills that read the database before this call are discarded.
func (c *RedisHistoryCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, VersionKey(userID))
		pipe.Del(ctx, HistoryKey(userID))
		return nil
	})
	if err != nil {
		log.Printf("[Cache] invalidate %s: %v", HistoryKey(userID), err)
	}
}
