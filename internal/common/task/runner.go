// Package task runs detached background work (store sync, usage
// recording, notifications) that must never block or fail the caller.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/common/metrics"
)

// Runner spawns detached tasks. Each task gets its own context, detached
// from the caller's cancellation, bounded by the runner timeout.
type Runner struct {
	logger  logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRunner(log logger.Logger, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		logger:  log.WithFields(map[string]interface{}{"component": "task-runner"}),
		timeout: timeout,
	}
}

// Go runs fn in a new goroutine. Errors and panics are logged and counted,
// never propagated.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				metrics.BackgroundTaskFailures.WithLabelValues(name).Inc()
				r.logger.Error("background task panicked", map[string]interface{}{
					"task":  name,
					"panic": fmt.Sprint(rec),
				})
			}
		}()

		if err := fn(taskCtx); err != nil {
			metrics.BackgroundTaskFailures.WithLabelValues(name).Inc()
			r.logger.Warn("background task failed", map[string]interface{}{
				"task":  name,
				"error": err.Error(),
			})
		}
	}()
}

// Wait blocks until every spawned task has returned. Only shutdown paths
// and tests call it.
func (r *Runner) Wait() {
	r.wg.Wait()
}
