package ai

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded indicates the provider rejected the call for rate or quota reasons.
	ErrQuotaExceeded = errors.New("ai quota exceeded")
	// ErrUnauthorized indicates the provider rejected the credentials.
	ErrUnauthorized = errors.New("ai credentials rejected")
	// ErrEmptyResponse indicates the provider answered without usable text.
	ErrEmptyResponse = errors.New("ai returned an empty response")
)

// GenerationParams bounds a single generation call.
type GenerationParams struct {
	Temperature     float32
	MaxOutputTokens int
}

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	Model() string
}

// classifyStatus maps an HTTP status returned by a provider onto the package sentinels.
func classifyStatus(status int, err error) error {
	switch status {
	case 401, 403:
		return errors.Join(ErrUnauthorized, err)
	case 429:
		return errors.Join(ErrQuotaExceeded, err)
	default:
		return err
	}
}
