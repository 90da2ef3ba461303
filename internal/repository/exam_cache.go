package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/codexam/internal/config"
	"github.com/stemsi/codexam/internal/model"
)

// ExamSource is the backing store behind the exam cache.
type ExamSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListByOrganization(ctx context.Context, orgID int) ([]model.Exam, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error
}

// CachedExamRepository is a Redis read-through cache over exam lookups by id.
// Redis failures degrade to the source and are only logged.
type CachedExamRepository struct {
	src ExamSource
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewCachedExamRepository wraps src with a cache holding each exam for ttl.
func NewCachedExamRepository(src ExamSource, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedExamRepository {
	return &CachedExamRepository{
		src: src,
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "exam_cache").Logger(),
	}
}

// GetByID returns the cached exam, loading and caching it on a miss.
func (r *CachedExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	key := config.CacheKey.ExamPayloadKey(id.String())

	data, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var exam model.Exam
		if jsonErr := json.Unmarshal(data, &exam); jsonErr == nil {
			return &exam, nil
		}
		r.log.Warn().Str("exam_id", id.String()).Msg("Discarding undecodable cached exam")
	case !errors.Is(err, redis.Nil):
		r.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache read failed")
	}

	exam, err := r.src.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(exam); err == nil {
		if err := r.rdb.Set(ctx, key, payload, r.ttl).Err(); err != nil {
			r.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache write failed")
		}
	}
	return exam, nil
}

// ListByOrganization is not cached.
func (r *CachedExamRepository) ListByOrganization(ctx context.Context, orgID int) ([]model.Exam, error) {
	return r.src.ListByOrganization(ctx, orgID)
}

// UpdateStatus writes through and drops the cached copy.
func (r *CachedExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	if err := r.src.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	return r.Invalidate(ctx, id)
}

// Invalidate removes the cached exam.
func (r *CachedExamRepository) Invalidate(ctx context.Context, id uuid.UUID) error {
	return r.rdb.Del(ctx, config.CacheKey.ExamPayloadKey(id.String())).Err()
}
