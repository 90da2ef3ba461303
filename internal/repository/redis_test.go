package repository

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/codexam/internal/config"
	"github.com/stemsi/codexam/internal/model"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type countingExamSource struct {
	exams map[uuid.UUID]*model.Exam
	gets  int32
}

func (s *countingExamSource) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	atomic.AddInt32(&s.gets, 1)
	e, ok := s.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (s *countingExamSource) ListByOrganization(context.Context, int) ([]model.Exam, error) {
	return nil, nil
}

func (s *countingExamSource) UpdateStatus(_ context.Context, id uuid.UUID, status model.ExamStatus) error {
	s.exams[id].Status = status
	return nil
}

func TestCachedExamRepositoryReadThrough(t *testing.T) {
	mr, rdb := newRedis(t)
	id := uuid.New()
	src := &countingExamSource{exams: map[uuid.UUID]*model.Exam{
		id: {ID: id, Name: "Algorithms", Status: model.ExamStatusStarted, Duration: "60", OrganizationIDs: []int{1}},
	}}
	repo := NewCachedExamRepository(src, rdb, time.Minute, zerolog.Nop())
	ctx := context.Background()

	first, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, []int{1}, second.OrganizationIDs)
	assert.EqualValues(t, 1, atomic.LoadInt32(&src.gets))
	assert.True(t, mr.Exists(config.CacheKey.ExamPayloadKey(id.String())))
	assert.Equal(t, time.Minute, mr.TTL(config.CacheKey.ExamPayloadKey(id.String())))
}

func TestCachedExamRepositoryUpdateStatusInvalidates(t *testing.T) {
	_, rdb := newRedis(t)
	id := uuid.New()
	src := &countingExamSource{exams: map[uuid.UUID]*model.Exam{
		id: {ID: id, Status: model.ExamStatusScheduled},
	}}
	repo := NewCachedExamRepository(src, rdb, time.Minute, zerolog.Nop())
	ctx := context.Background()

	_, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, id, model.ExamStatusStarted))

	e, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ExamStatusStarted, e.Status)
	assert.EqualValues(t, 2, atomic.LoadInt32(&src.gets))
}

func TestCachedExamRepositoryMissingExamIsNotCached(t *testing.T) {
	mr, rdb := newRedis(t)
	repo := NewCachedExamRepository(&countingExamSource{exams: map[uuid.UUID]*model.Exam{}}, rdb, time.Minute, zerolog.Nop())
	id := uuid.New()

	_, err := repo.GetByID(context.Background(), id)

	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.False(t, mr.Exists(config.CacheKey.ExamPayloadKey(id.String())))
}

func TestCachedExamRepositoryFallsBackWhenRedisIsDown(t *testing.T) {
	mr, rdb := newRedis(t)
	id := uuid.New()
	src := &countingExamSource{exams: map[uuid.UUID]*model.Exam{id: {ID: id, Name: "x"}}}
	repo := NewCachedExamRepository(src, rdb, time.Minute, zerolog.Nop())
	mr.Close()

	e, err := repo.GetByID(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "x", e.Name)
}

func TestSubmitLockerIsExclusiveUntilReleased(t *testing.T) {
	mr, rdb := newRedis(t)
	locker := NewSubmitLocker(rdb, 30*time.Second)
	ctx := context.Background()
	attemptID := uuid.New()

	release, err := locker.Acquire(ctx, attemptID)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, attemptID)
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := locker.Acquire(ctx, uuid.New())
	require.NoError(t, err)
	other()

	release()
	assert.False(t, mr.Exists(config.CacheKey.AttemptSubmitLockKey(attemptID.String())))

	again, err := locker.Acquire(ctx, attemptID)
	require.NoError(t, err)
	again()
}

func TestSubmitLockerExpires(t *testing.T) {
	mr, rdb := newRedis(t)
	locker := NewSubmitLocker(rdb, 5*time.Second)
	ctx := context.Background()
	attemptID := uuid.New()

	_, err := locker.Acquire(ctx, attemptID)
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)

	release, err := locker.Acquire(ctx, attemptID)
	require.NoError(t, err)
	release()
}
