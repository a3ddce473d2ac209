package scoreplaces

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	errs "lead-pipeline/internal/common/errors"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/common/metrics"
	"lead-pipeline/internal/common/validation"
	"lead-pipeline/internal/scoring"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "score-places"

type Handler struct {
	config       *Config
	errorHandler *errs.JobErrorHandler
	logger       logger.Logger
}

func NewHandler(cfg *Config, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       cfg,
		errorHandler: errs.NewJobErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errs.NewInvalidRequestError(fmt.Sprintf("parse job variables: %v", err))
	}
	if result := validation.ValidateInput(variables, GetInputSchema()); !result.Valid {
		return nil, errs.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errs.NewInvalidRequestError(fmt.Sprintf("decode job variables: %v", err))
	}
	return &input, nil
}

// Execute scores and ranks the supplied places. Records without id or name
// are dropped by the scorer.
func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errs.NewInvalidRequestError("input is required")
	}
	topN := input.TopN
	if topN <= 0 {
		topN = h.config.DefaultTopN
	}

	result := scoring.ScoreAndRankPlaces(input.Places, topN)
	out := &Output{
		Scored:        result.Scored,
		ScoredCount:   len(result.Scored),
		MedianReviews: result.MedianReviews,
		AvgRating:     result.AvgRating,
	}
	if len(result.Scored) > 0 {
		out.TopScore = result.Scored[0].Score
	}

	h.logger.Debug("places scored", map[string]interface{}{
		"inputCount":  len(input.Places),
		"outputCount": out.ScoredCount,
		"topScore":    out.TopScore,
	})
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to build complete command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errs.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
