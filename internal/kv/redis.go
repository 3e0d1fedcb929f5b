package kv

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the Store implementation backing production deployments,
// grounded on edirooss-zmux-server/internal/redis's client wrapper style:
// a thin struct around *redis.Client with one method per operation and
// errors wrapped with the operation name.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a RedisStore talking to addr (host:port) on db.
func NewRedisStore(addr string, db int) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})}
}

// NewRedisStoreFromClient wraps an already-configured client, for callers
// that need TLS, auth, or cluster options this package doesn't expose.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kv: del %q: %w", key, err)
	}
	return nil
}

// DeleteRange removes every key in [start, end). Redis has no native
// ordered-range delete, so this scans the glob-prefix shared by both
// bounds and filters client-side against the exact string bounds;
// CompositeKey's fixed-width, zero-padded layout is what makes a plain
// string comparison equivalent to the intended seq-ordered range.
func (s *RedisStore) DeleteRange(ctx context.Context, start, end string) error {
	keys, err := s.scanPrefix(ctx, commonPrefix(start, end))
	if err != nil {
		return fmt.Errorf("kv: delete range [%q,%q): %w", start, end, err)
	}
	var toDelete []string
	for _, k := range keys {
		if k >= start && k < end {
			toDelete = append(toDelete, k)
		}
	}
	if len(toDelete) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, toDelete...).Err(); err != nil {
		return fmt.Errorf("kv: delete range [%q,%q): %w", start, end, err)
	}
	return nil
}

func (s *RedisStore) ScanPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	keys, err := s.scanPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("kv: scan prefix %q: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("kv: mget prefix %q: %w", prefix, err)
	}
	entries := make([]Entry, 0, len(keys))
	for i, v := range vals {
		if v == nil {
			continue // deleted between SCAN and MGET
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("kv: key %q: unexpected redis type %T", keys[i], v)
		}
		entries = append(entries, Entry{Key: keys[i], Value: []byte(s)})
	}
	return entries, nil
}

func (s *RedisStore) scanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// commonPrefix returns the longest literal prefix shared by a and b, used
// to build a SCAN glob that is guaranteed to cover [a, b).
func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

var _ Store = (*RedisStore)(nil)

// MemoryStore is an in-process Store, used by tests. Rooms that opt out of
// replication use no Store at all.
type MemoryStore struct {
	data map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) DeleteRange(_ context.Context, start, end string) error {
	for k := range s.data {
		if k >= start && k < end {
			delete(s.data, k)
		}
	}
	return nil
}

func (s *MemoryStore) ScanPrefix(_ context.Context, prefix string) ([]Entry, error) {
	var entries []Entry
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			entries = append(entries, Entry{Key: k, Value: v})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

var _ Store = (*MemoryStore)(nil)
