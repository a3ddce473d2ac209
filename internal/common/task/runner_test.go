package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"lead-pipeline/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

func TestRunner_Go_RunsDetachedFromCallerCancellation(t *testing.T) {
	runner := NewRunner(logger.NewTestLogger(t), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	runner.Go(ctx, "detached", func(taskCtx context.Context) error {
		assert.NoError(t, taskCtx.Err())
		ran.Store(true)
		return nil
	})
	runner.Wait()

	assert.True(t, ran.Load())
}

func TestRunner_Go_SwallowsErrorsAndPanics(t *testing.T) {
	runner := NewRunner(logger.NewTestLogger(t), time.Second)

	var calls atomic.Int32
	runner.Go(context.Background(), "fails", func(context.Context) error {
		calls.Add(1)
		return errors.New("store unavailable")
	})
	runner.Go(context.Background(), "panics", func(context.Context) error {
		calls.Add(1)
		panic("boom")
	})

	assert.NotPanics(t, runner.Wait)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRunner_Go_AppliesTimeout(t *testing.T) {
	runner := NewRunner(logger.NewTestLogger(t), 20*time.Millisecond)

	var deadlineHit atomic.Bool
	runner.Go(context.Background(), "slow", func(taskCtx context.Context) error {
		<-taskCtx.Done()
		deadlineHit.Store(errors.Is(taskCtx.Err(), context.DeadlineExceeded))
		return taskCtx.Err()
	})
	runner.Wait()

	assert.True(t, deadlineHit.Load())
}
