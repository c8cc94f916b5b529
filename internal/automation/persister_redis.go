package automation

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list holding the automation set.
const DefaultRedisKey = "graylogic:automata:automations"

// RedisPersister keeps the set as a Redis list of JSON blobs. Save
// replaces the list inside MULTI/EXEC so readers never see a partial set.
type RedisPersister struct {
	rdb redis.UniversalClient
	key string
}

// NewRedisPersister creates a persister on the given client. An empty key
// uses DefaultRedisKey.
func NewRedisPersister(rdb redis.UniversalClient, key string) *RedisPersister {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisPersister{rdb: rdb, key: key}
}

// Load implements Persister.
func (p *RedisPersister) Load(ctx context.Context) ([][]byte, error) {
	values, err := p.rdb.LRange(ctx, p.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.key, err)
	}
	blobs := make([][]byte, len(values))
	for i, v := range values {
		blobs[i] = []byte(v)
	}
	return blobs, nil
}

// Save implements Persister.
func (p *RedisPersister) Save(ctx context.Context, blobs [][]byte) error {
	values := make([]any, len(blobs))
	for i, b := range blobs {
		values[i] = string(b)
	}

	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, p.key)
		if len(values) > 0 {
			pipe.RPush(ctx, p.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", p.key, err)
	}
	return nil
}
