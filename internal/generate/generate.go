// Package generate calls the text generation API. Every failure falls into
// one of two buckets: ErrInvalidKey, where the user must supply a different
// key, or ErrConnectivity, where resubmitting may succeed.
package generate

import (
	"context"
	"errors"
	"fmt"

	"copycraft/internal/content"
)

var (
	ErrInvalidKey   = errors.New("invalid api key")
	ErrConnectivity = errors.New("generation service unreachable")
)

// Generator turns a content request into copy.
type Generator interface {
	Generate(ctx context.Context, req content.Request, apiKey string) (string, error)
}

// APIError is a non-2xx answer from the generation API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Reason     string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("generation api: status %d", e.StatusCode)
	if e.Status != "" {
		msg += " " + e.Status
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Classify maps err onto ErrInvalidKey or ErrConnectivity. nil stays nil.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidKey):
		return ErrInvalidKey
	default:
		return ErrConnectivity
	}
}
