// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Logger is the subset of logger.Logger the job error handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// JobErrorHandler turns pipeline errors into Zeebe job failures or thrown errors.
type JobErrorHandler struct {
	logger Logger
}

func NewJobErrorHandler(logger Logger) *JobErrorHandler {
	return &JobErrorHandler{logger: logger}
}

// ErrorVariables returns the process variables attached to a failed job.
func ErrorVariables(stdErr *StandardError) map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"errorStatus":   stdErr.Status,
		"errorMessage":  stdErr.Message,
		"errorDetails":  stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
		"timestamp":     stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}
	return vars
}

// HandleJobError fails the job with retries for retryable upstream and
// storage errors, and throws a workflow error for everything else.
func (h *JobErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := Normalize(err)
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"status":           stdErr.Status,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"retries":          retries,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})

	varsJSON, _ := json.Marshal(ErrorVariables(stdErr))

	if retries > 0 && job.Retries > 0 {
		remaining := int32(retries)
		if job.Retries < remaining {
			remaining = job.Retries
		}
		cmd := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(remaining - 1).
			ErrorMessage(stdErr.Error())
		if withVars, vErr := cmd.VariablesFromString(string(varsJSON)); vErr == nil {
			_, _ = withVars.Send(ctx)
			return
		}
		_, _ = cmd.Send(ctx)
		return
	}

	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(string(stdErr.Code)).
		ErrorMessage(stdErr.Message)
	if withVars, vErr := cmd.VariablesFromString(string(varsJSON)); vErr == nil {
		_, _ = withVars.Send(ctx)
		return
	}
	_, _ = cmd.Send(ctx)
}
