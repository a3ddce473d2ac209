package generatereport

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
	"lead-pipeline/internal/intelligence"
	"lead-pipeline/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "generate-report"

// Reports is implemented by *intelligence.Service.
type Reports interface {
	CompetitorReport(ctx context.Context, subject intelligence.Subject, attr models.Attribution, topN int) (*intelligence.CompetitorReport, error)
	MarketReport(ctx context.Context, subject intelligence.Subject, attr models.Attribution) (*intelligence.MarketReport, error)
	ViabilityReport(ctx context.Context, idea string, subject intelligence.Subject, attr models.Attribution) (*intelligence.ViabilityReport, error)
	CompanyReport(ctx context.Context, company intelligence.Company, attr models.Attribution) (*intelligence.CompanyReport, error)
	AnalyzeLead(ctx context.Context, place models.ScoredPlace, attr models.Attribution) (*intelligence.LeadAnalysis, error)
}

type Handler struct {
	config       *Config
	reports      Reports
	errorHandler *errs.JobErrorHandler
	logger       logger.Logger
}

func NewHandler(cfg *Config, reports Reports, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       cfg,
		reports:      reports,
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
	if result := validation.ValidateInput(variables, GetInputSchema()); !result.Valid {
		return nil, errs.NewInvalidRequestError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errs.NewInvalidRequestError(fmt.Sprintf("decode job variables: %v", err))
	}
	return &input, nil
}

// Execute dispatches on the report type. Degraded reports complete the job;
// only search, quota and provider failures fail it.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errs.NewInvalidRequestError("input is required")
	}
	attr := input.attribution()
	out := &Output{ReportType: input.ReportType}

	switch input.ReportType {
	case ReportCompetitor:
		if err := requireQuery(input.Subject); err != nil {
			return nil, err
		}
		topN := input.TopN
		if topN <= 0 {
			topN = h.config.CompetitorTop
		}
		report, err := h.reports.CompetitorReport(ctx, input.Subject, attr, topN)
		if err != nil {
			return nil, err
		}
		out.Report, out.Degraded = report, report.Degraded

	case ReportMarket:
		if err := requireQuery(input.Subject); err != nil {
			return nil, err
		}
		report, err := h.reports.MarketReport(ctx, input.Subject, attr)
		if err != nil {
			return nil, err
		}
		out.Report, out.Degraded = report, report.Degraded

	case ReportViability:
		if err := requireQuery(input.Subject); err != nil {
			return nil, err
		}
		report, err := h.reports.ViabilityReport(ctx, input.Idea, input.Subject, attr)
		if err != nil {
			return nil, err
		}
		out.Report, out.Degraded = report, report.Degraded

	case ReportCompany:
		if strings.TrimSpace(input.Company.Name) == "" {
			return nil, errs.NewInvalidRequestError("company.name is required")
		}
		report, err := h.reports.CompanyReport(ctx, input.Company, attr)
		if err != nil {
			return nil, err
		}
		out.Report, out.Degraded = report, report.Degraded

	case ReportLead:
		if input.Lead == nil || input.Lead.ExternalID == "" {
			return nil, errs.NewInvalidRequestError("lead.externalId is required")
		}
		report, err := h.reports.AnalyzeLead(ctx, *input.Lead, attr)
		if err != nil {
			return nil, err
		}
		out.Report, out.Degraded = report, report.Degraded

	default:
		return nil, errs.NewInvalidRequestError(fmt.Sprintf("unknown report type %q", input.ReportType))
	}

	if out.Degraded {
		h.logger.Warn("report degraded", map[string]interface{}{
			"reportType": input.ReportType,
			"userId":     input.UserID,
		})
	}
	return out, nil
}

func requireQuery(s intelligence.Subject) error {
	if strings.TrimSpace(s.Query) == "" {
		return errs.NewInvalidRequestError("subject.query is required")
	}
	return nil
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
		"jobKey":     job.GetKey(),
		"reportType": output.ReportType,
		"degraded":   output.Degraded,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errs.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
