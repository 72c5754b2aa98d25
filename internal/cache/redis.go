package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisPrefix = "freightgraph:cache:"

// Redis stores each namespace as one hash.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) hashKey(ns string) string { return redisPrefix + ns }

func (r *Redis) Get(ctx context.Context, ns, key string) (Entry, bool, error) {
	raw, err := r.rdb.HGet(ctx, r.hashKey(ns), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// A garbled field is a miss; the next Set overwrites it.
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (r *Redis) Set(ctx context.Context, ns, key string, value []byte) error {
	if err := checkNamespace(ns); err != nil {
		return err
	}
	data, err := json.Marshal(Entry{Value: value, WrittenAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return r.rdb.HSet(ctx, r.hashKey(ns), key, data).Err()
}

func (r *Redis) Clear(ctx context.Context, ns string) error {
	return r.rdb.Del(ctx, r.hashKey(ns)).Err()
}

func (r *Redis) Stats(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	iter := r.rdb.Scan(ctx, 0, redisPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := r.rdb.HLen(ctx, iter.Val()).Result()
		if err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(iter.Val(), redisPrefix)] = int(n)
	}
	return out, iter.Err()
}

func (r *Redis) Close() error { return r.rdb.Close() }
