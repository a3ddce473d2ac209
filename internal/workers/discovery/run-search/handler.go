package runsearch

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
	"lead-pipeline/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "run-search"

// Searcher is the slice of the search orchestrator this worker drives.
type Searcher interface {
	RunSearch(ctx context.Context, req models.SearchRequest, identity models.Identity) (*models.SearchResult, error)
	RunSearchAllPages(ctx context.Context, req models.SearchRequest, identity models.Identity, maxPlaces int) (*models.AllPagesResult, error)
}

type Handler struct {
	config       *Config
	search       Searcher
	errorHandler *errs.JobErrorHandler
	logger       logger.Logger
}

func NewHandler(cfg *Config, search Searcher, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       cfg,
		search:       search,
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

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

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

	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errs.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errs.NewInvalidRequestError(fmt.Sprintf("decode job variables: %v", err))
	}
	return &input, nil
}

// Execute runs one search, or a bounded multi-page walk when MaxPlaces is set.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errs.NewInvalidRequestError("input is required")
	}
	identity := models.Identity{UserID: input.UserID}
	req := input.request()

	if input.MaxPlaces > 0 {
		maxPlaces := input.MaxPlaces
		if h.config.MaxPlaces > 0 && maxPlaces > h.config.MaxPlaces {
			maxPlaces = h.config.MaxPlaces
		}
		res, err := h.search.RunSearchAllPages(ctx, req, identity, maxPlaces)
		if err != nil {
			return nil, err
		}
		return &Output{
			Places:       res.Places,
			ResultCount:  len(res.Places),
			Source:       models.SourceExternal,
			TotalFetched: res.TotalFetched,
		}, nil
	}

	res, err := h.search.RunSearch(ctx, req, identity)
	if err != nil {
		return nil, err
	}

	source := models.SourceExternal
	switch {
	case res.FromCache:
		source = models.SourceCache
	case res.FromLocalDB:
		source = models.SourceLocalDB
	}

	h.logger.Info("search resolved", map[string]interface{}{
		"userId":  input.UserID,
		"source":  source,
		"results": len(res.Places),
	})

	return &Output{
		Places:        res.Places,
		ResultCount:   len(res.Places),
		NextPageToken: res.NextPageToken,
		Source:        source,
	}, nil
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
		return
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":      job.GetKey(),
		"resultCount": output.ResultCount,
		"source":      output.Source,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errs.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
