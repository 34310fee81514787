//go:build integration

package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fedlearn/internal/training/dispatch"
	id "fedlearn/pkg/domain"
	"fedlearn/pkg/testutil/containers"
)

type RedisGuardSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	guard *dispatch.RedisGuard
}

func TestRedisGuardSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisGuardSuite))
}

func (s *RedisGuardSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.guard = dispatch.NewRedisGuard(s.redis.Client, dispatch.WithLockTTL(time.Minute))
}

func (s *RedisGuardSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisGuardSuite) TestDuplicateDispatchRejected() {
	ctx := context.Background()
	runID := id.NewRunID()

	release, err := s.guard.Acquire(ctx, runID)
	s.Require().NoError(err)

	// A second instance sharing the same Redis sees the lock.
	other := dispatch.NewRedisGuard(s.redis.Client)
	_, err = other.Acquire(ctx, runID)
	s.ErrorIs(err, dispatch.ErrInFlight)

	release()
	again, err := other.Acquire(ctx, runID)
	s.Require().NoError(err)
	again()
}

func (s *RedisGuardSuite) TestReleaseOnlyDropsOwnLock() {
	ctx := context.Background()
	runID := id.NewRunID()
	short := dispatch.NewRedisGuard(s.redis.Client, dispatch.WithLockTTL(50*time.Millisecond))

	stale, err := short.Acquire(ctx, runID)
	s.Require().NoError(err)
	time.Sleep(150 * time.Millisecond)

	current, err := s.guard.Acquire(ctx, runID)
	s.Require().NoError(err)
	defer current()

	stale()
	_, err = s.guard.Acquire(ctx, runID)
	s.ErrorIs(err, dispatch.ErrInFlight, "expired holder must not release the new lock")
}
