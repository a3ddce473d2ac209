package ai

import (
	"context"
	"net/http"
	"time"

	httpclient "lead-pipeline/internal/common/http"
	"lead-pipeline/internal/common/metrics"
)

// post sends body and decodes a 2xx answer into out. Everything else is a
// *ProviderError carrying the raw body.
func post(ctx context.Context, client *httpclient.Client, provider, url string, headers map[string]string, body, out interface{}) error {
	start := time.Now()
	resp, err := client.SendJSON(ctx, http.MethodPost, url, headers, body)
	metrics.ExternalCallDuration.WithLabelValues(provider, "completion").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExternalCalls.WithLabelValues(provider, "completion", "failure").Inc()
		return err
	}
	if !resp.OK() {
		metrics.ExternalCalls.WithLabelValues(provider, "completion", "failure").Inc()
		return &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	metrics.ExternalCalls.WithLabelValues(provider, "completion", "success").Inc()
	return resp.Decode(out)
}
