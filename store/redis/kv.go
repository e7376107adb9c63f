/*
Package redis provides a Redis-backed generic.KVStore.

PURPOSE:
  Lets several engine processes share one set of TOIL thresholds. When no
  Redis address is configured the SQLite settings table is used instead.

KEYS:
  Every key is stored under Prefix ("toil:" by default) with no expiry.

SEE ALSO:
  - generic/store.go: KVStore interface
  - toil/thresholds.go: the only consumer
*/
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultPrefix = "toil:"

// KV implements generic.KVStore on a Redis client.
type KV struct {
	client *goredis.Client
	prefix string
}

func NewKV(client *goredis.Client, prefix string) *KV {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &KV{client: client, prefix: prefix}
}

// Dial opens a client and checks the connection.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := k.client.Get(ctx, k.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set writes value with a single SET, so readers see the old or the new value.
func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	if err := k.client.Set(ctx, k.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (k *KV) Delete(ctx context.Context, key string) error {
	return k.client.Del(ctx, k.prefix+key).Err()
}

func (k *KV) Ping(ctx context.Context) error {
	return k.client.Ping(ctx).Err()
}
