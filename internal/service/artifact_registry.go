package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-weekly-report/internal/dto"
)

// ErrArtifactNotFound indicates no artifact is known for the lookup.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactRegistry remembers the latest artifact per phone number.
type ArtifactRegistry interface {
	Record(ctx context.Context, record dto.ArtifactRecord) error
	Latest(ctx context.Context, mobileNumber string) (dto.ArtifactRecord, error)
}

type redisArtifactRegistry struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewArtifactRegistry stores records in Redis. A zero ttl keeps them forever.
func NewArtifactRegistry(client *redis.Client, ttl time.Duration, logger zerolog.Logger) ArtifactRegistry {
	return &redisArtifactRegistry{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "artifact_registry").Logger(),
	}
}

func latestArtifactKey(mobileNumber string) string {
	return fmt.Sprintf("weekly_report:latest:%s", mobileNumber)
}

func (r *redisArtifactRegistry) Record(ctx context.Context, record dto.ArtifactRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode artifact record: %w", err)
	}

	if err := r.client.Set(ctx, latestArtifactKey(record.MobileNumber), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("store artifact record: %w", err)
	}

	r.logger.Debug().Str("output_file", record.OutputFile).Msg("latest artifact recorded")
	return nil
}

func (r *redisArtifactRegistry) Latest(ctx context.Context, mobileNumber string) (dto.ArtifactRecord, error) {
	cached, err := r.client.Get(ctx, latestArtifactKey(mobileNumber)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return dto.ArtifactRecord{}, ErrArtifactNotFound
		}
		return dto.ArtifactRecord{}, fmt.Errorf("read artifact record: %w", err)
	}

	var record dto.ArtifactRecord
	if err := json.Unmarshal([]byte(cached), &record); err != nil {
		r.logger.Warn().Err(err).Msg("discarding unreadable artifact record")
		return dto.ArtifactRecord{}, ErrArtifactNotFound
	}
	return record, nil
}
