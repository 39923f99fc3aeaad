// Package apikey keeps each user's generation API key, sealed at rest.
package apikey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/nacl/secretbox"

	"copycraft/internal/auth"
)

const nonceSize = 24

var (
	ErrNoKey    = errors.New("no api key stored")
	ErrEmptyKey = errors.New("api key is empty")
	ErrSecret   = errors.New("apikey secret must be 32 bytes hex encoded")
)

type Store struct {
	client *redis.Client
	prefix string
	secret [32]byte
}

// NewStore parses secretHex and returns a store writing under apikey:<email>.
func NewStore(client *redis.Client, secretHex string) (*Store, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(secretHex))
	if err != nil || len(raw) != 32 {
		return nil, ErrSecret
	}

	s := &Store{client: client, prefix: "apikey:"}
	copy(s.secret[:], raw)
	return s, nil
}

func (s *Store) key(owner string) string {
	return s.prefix + auth.NormalizeEmail(owner)
}

func (s *Store) Get(ctx context.Context, owner string) (string, error) {
	sealed, err := s.client.Get(ctx, s.key(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoKey
	}
	if err != nil {
		return "", fmt.Errorf("apikey: get: %w", err)
	}

	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", errors.New("apikey: stored value is truncated")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.secret)
	if !ok {
		return "", errors.New("apikey: stored value cannot be opened")
	}
	return string(plain), nil
}

// Set stores the trimmed key, replacing any previous one.
func (s *Store) Set(ctx context.Context, owner, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrEmptyKey
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("apikey: nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(apiKey), &nonce, &s.secret)

	if err := s.client.Set(ctx, s.key(owner), sealed, 0).Err(); err != nil {
		return fmt.Errorf("apikey: set: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, owner string) error {
	if err := s.client.Del(ctx, s.key(owner)).Err(); err != nil {
		return fmt.Errorf("apikey: clear: %w", err)
	}
	return nil
}

// Mask shows only the ends of a key, e.g. "AIza…x9Qk".
func Mask(apiKey string) string {
	r := []rune(apiKey)
	if len(r) <= 8 {
		return strings.Repeat("•", len(r))
	}
	return string(r[:4]) + "…" + string(r[len(r)-4:])
}
