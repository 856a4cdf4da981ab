package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis server via go-redis. All list,
// hash, and pub/sub primitives map one-to-one onto Redis commands, so the
// exactly-once pop guarantee comes straight from BLPOP.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to the Redis at url (redis://... form) and pings
// it once so a bad address fails at startup rather than mid-matchmaking.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) BLPop(ctx context.Context, key string) (string, error) {
	// Timeout 0 blocks indefinitely; ctx cancellation still unblocks.
	res, err := s.rdb.BLPop(ctx, 0, key).Result()
	if err != nil {
		return "", err
	}
	// BLPOP returns [key, value].
	return res[1], nil
}

func (s *RedisStore) LPop(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (s *RedisStore) RPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.rdb.RPush(ctx, key, args...).Err()
}

func (s *RedisStore) LLen(ctx context.Context, key string) (int64, error) {
	return s.rdb.LLen(ctx, key).Result()
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, error) {
	val, err := s.rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (s *RedisStore) HSet(ctx context.Context, key, field, value string) error {
	return s.rdb.HSet(ctx, key, field, value).Err()
}

func (s *RedisStore) HDel(ctx context.Context, key string, fields ...string) error {
	return s.rdb.HDel(ctx, key, fields...).Err()
}

func (s *RedisStore) Publish(ctx context.Context, channel, payload string) error {
	return s.rdb.Publish(ctx, channel, payload).Err()
}

func (s *RedisStore) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := s.rdb.Subscribe(ctx, channel)
	// Force the subscription onto the wire before anyone publishes to us.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	sub := &redisSubscription{ps: ps, out: make(chan string)}
	go sub.pump()
	return sub, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

type redisSubscription struct {
	ps  *redis.PubSub
	out chan string
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		s.out <- msg.Payload
	}
}

func (s *redisSubscription) Messages() <-chan string { return s.out }

func (s *redisSubscription) Close() error { return s.ps.Close() }
