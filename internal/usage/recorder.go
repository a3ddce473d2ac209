// Package usage records metered consumption without blocking callers.
package usage

import (
	"context"
	"time"

	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/common/task"
	"lead-pipeline/internal/models"

	"github.com/google/uuid"
)

// Sink is the append-only usage ledger.
type Sink interface {
	AppendUsage(ctx context.Context, event models.UsageEvent) error
}

type Recorder struct {
	sink   Sink
	runner *task.Runner
	logger logger.Logger
	now    func() time.Time
}

func NewRecorder(sink Sink, runner *task.Runner, log logger.Logger) *Recorder {
	return &Recorder{
		sink:   sink,
		runner: runner,
		logger: log.WithFields(map[string]interface{}{"component": "usage-recorder"}),
		now:    time.Now,
	}
}

// Record stamps event and writes it on a detached task. Failures are
// logged by the runner.
func (r *Recorder) Record(ctx context.Context, event models.UsageEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.now().UTC()
	}
	if event.WorkspaceID == "" && event.UserID == "" {
		r.logger.Debug("dropping unattributed usage event", map[string]interface{}{"kind": event.Kind})
		return
	}

	r.runner.Go(ctx, "usage."+event.Kind, func(ctx context.Context) error {
		return r.sink.AppendUsage(ctx, event)
	})
}
