// Package brand stores each user's brand profiles.
package brand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"copycraft/internal/auth"
	"copycraft/internal/content"
)

const MaxPerOwner = 50

var (
	ErrNotFound = errors.New("brand not found")
	ErrLimit    = fmt.Errorf("brand limit of %d reached", MaxPerOwner)
)

// Defaults seed every owner's list until it is first modified.
func Defaults() []content.Brand {
	return []content.Brand{
		{
			ID:              "demo-1",
			Name:            "TechNova",
			Industry:        "Consumer Electronics",
			Description:     "Innovative gadgets for the modern lifestyle. High-tech meets minimal design.",
			DefaultTone:     content.ToneWitty,
			DefaultAudience: "Tech enthusiasts, Early adopters, Ages 18-35",
		},
		{
			ID:              "demo-2",
			Name:            "GreenLeaf Organics",
			Industry:        "Health & Wellness",
			Description:     "100% organic supplements and superfoods sourced sustainably.",
			DefaultTone:     content.ToneFriendly,
			DefaultAudience: "Health-conscious individuals, Eco-friendly consumers",
		},
	}
}

// RedisStore keeps one JSON list per owner under brands:<email>.
type RedisStore struct {
	client *redis.Client
	prefix string
	newID  func() string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "brands:",
		newID:  uuid.NewString,
	}
}

func (s *RedisStore) key(owner string) string {
	return s.prefix + auth.NormalizeEmail(owner)
}

// List returns the owner's brands in insertion order.
func (s *RedisStore) List(ctx context.Context, owner string) ([]content.Brand, error) {
	return s.load(ctx, s.client, s.key(owner))
}

func (s *RedisStore) Get(ctx context.Context, owner, id string) (content.Brand, error) {
	brands, err := s.List(ctx, owner)
	if err != nil {
		return content.Brand{}, err
	}
	for _, b := range brands {
		if b.ID == id {
			return b, nil
		}
	}
	return content.Brand{}, ErrNotFound
}

// Add validates b, assigns a new id and appends it.
func (s *RedisStore) Add(ctx context.Context, owner string, b content.Brand) (content.Brand, error) {
	b.Name = strings.TrimSpace(b.Name)
	b.Industry = strings.TrimSpace(b.Industry)
	b.DefaultAudience = strings.TrimSpace(b.DefaultAudience)
	if b.DefaultTone == "" {
		b.DefaultTone = content.ToneProfessional
	}
	if err := b.Validate(); err != nil {
		return content.Brand{}, err
	}
	b.ID = s.newID()

	err := s.update(ctx, owner, func(brands []content.Brand) ([]content.Brand, error) {
		if len(brands) >= MaxPerOwner {
			return nil, ErrLimit
		}
		return append(brands, b), nil
	})
	if err != nil {
		return content.Brand{}, err
	}
	return b, nil
}

func (s *RedisStore) Delete(ctx context.Context, owner, id string) error {
	return s.update(ctx, owner, func(brands []content.Brand) ([]content.Brand, error) {
		for i, b := range brands {
			if b.ID == id {
				return append(brands[:i], brands[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
}

func (s *RedisStore) update(ctx context.Context, owner string, fn func([]content.Brand) ([]content.Brand, error)) error {
	k := s.key(owner)

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		brands, err := s.load(ctx, tx, k)
		if err != nil {
			return err
		}

		brands, err = fn(brands)
		if err != nil {
			return err
		}

		data, err := json.Marshal(brands)
		if err != nil {
			return fmt.Errorf("brand: marshal: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, 0)
			return nil
		})
		if err != nil {
			return fmt.Errorf("brand: save: %w", err)
		}
		return nil
	}, k)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, k string) ([]content.Brand, error) {
	data, err := c.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("brand: load: %w", err)
	}

	brands := []content.Brand{}
	if err := json.Unmarshal(data, &brands); err != nil {
		return nil, fmt.Errorf("brand: decode: %w", err)
	}
	return brands, nil
}
