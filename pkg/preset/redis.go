package preset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/metaop/pkg/cache"
	errs "github.com/matzehuels/metaop/pkg/errors"
)

// redisPrefix namespaces preset keys.
const redisPrefix = "metaop:preset:"

// RedisStore keeps presets as JSON strings in Redis. Transport errors are
// retried with the cache package's backoff.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client. The store closes it on
// Close.
func NewRedisStoreFromClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the named preset.
func (s *RedisStore) Get(ctx context.Context, name string) (*Preset, error) {
	if err := errs.ValidateIdentifier("preset name", name); err != nil {
		return nil, err
	}
	var data []byte
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		data, err = s.client.Get(ctx, redisPrefix+name).Bytes()
		return cache.ClassifyNetwork(err)
	})
	if errors.Is(err, redis.Nil) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("get preset %s: %w", name, err)
	}
	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode preset %s", name)
	}
	return &p, nil
}

// Save stores the preset without expiry.
func (s *RedisStore) Save(ctx context.Context, p *Preset) error {
	if err := errs.ValidateIdentifier("preset name", p.Name); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preset: %w", err)
	}
	return cache.RetryWithBackoff(ctx, func() error {
		return cache.ClassifyNetwork(s.client.Set(ctx, redisPrefix+p.Name, data, 0).Err())
	})
}

// Delete removes the preset.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := errs.ValidateIdentifier("preset name", name); err != nil {
		return err
	}
	var n int64
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		n, err = s.client.Del(ctx, redisPrefix+name).Result()
		return cache.ClassifyNetwork(err)
	})
	if err != nil {
		return fmt.Errorf("delete preset %s: %w", name, err)
	}
	if n == 0 {
		return notFound(name)
	}
	return nil
}

// List scans the preset keyspace.
func (s *RedisStore) List(ctx context.Context) ([]Preset, error) {
	var names []string
	iter := s.client.Scan(ctx, 0, redisPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), redisPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan presets: %w", err)
	}

	out := make([]Preset, 0, len(names))
	for _, name := range names {
		p, err := s.Get(ctx, name)
		if errs.Is(err, errs.ErrCodeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	sortByName(out)
	return out, nil
}

// Close closes the client.
func (s *RedisStore) Close() error { return s.client.Close() }

var _ Store = (*RedisStore)(nil)
