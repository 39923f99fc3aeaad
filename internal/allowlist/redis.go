package allowlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"copycraft/internal/access"
	"copycraft/internal/auth"
)

// RedisStore keeps each record as JSON under access:<email>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "access:",
	}
}

func (s *RedisStore) key(email string) string {
	return s.prefix + auth.NormalizeEmail(email)
}

func (s *RedisStore) Get(ctx context.Context, key string) (access.Record, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return access.Record{}, access.ErrRecordNotFound
	}
	if err != nil {
		return access.Record{}, fmt.Errorf("allowlist: get %s: %w", key, err)
	}
	return decodeRecord(val)
}

// CreateIfAbsent relies on SETNX so concurrent first logins converge on a
// single record.
func (s *RedisStore) CreateIfAbsent(ctx context.Context, key string, rec access.Record) error {
	rec.Email = auth.NormalizeEmail(key)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("allowlist: marshal record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(key), data, 0).Result()
	if err != nil {
		return fmt.Errorf("allowlist: create %s: %w", rec.Email, err)
	}
	if !ok {
		return access.ErrRecordExists
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]access.Record, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("allowlist: scan: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("allowlist: mget: %w", err)
	}

	out := make([]access.Record, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			// deleted between SCAN and MGET
			continue
		}
		rec, err := decodeRecord([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	sortRecords(out)
	return out, nil
}

// SetActive rewrites the record inside a WATCH transaction.
func (s *RedisStore) SetActive(ctx context.Context, key string, active bool) error {
	k := s.key(key)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return access.ErrRecordNotFound
		}
		if err != nil {
			return err
		}

		rec, err := decodeRecord(val)
		if err != nil {
			return err
		}
		rec.Active = active

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, 0)
			return nil
		})
		return err
	}, k)

	if errors.Is(err, access.ErrRecordNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("allowlist: set active %s: %w", key, err)
	}
	return nil
}

func decodeRecord(data []byte) (access.Record, error) {
	var rec access.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return access.Record{}, fmt.Errorf("allowlist: decode record: %w", err)
	}
	return rec, nil
}
