package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	errs "lead-pipeline/internal/common/errors"
	httpclient "lead-pipeline/internal/common/http"
	"lead-pipeline/internal/models"
)

const defaultCloudflareBaseURL = "https://api.cloudflare.com"

// cloudflareAdapter speaks the OpenAI-compatible Workers AI endpoint of one
// account. Models served there disagree on where the answer lives, so
// extraction walks several shapes before giving up.
type cloudflareAdapter struct {
	model     string
	apiToken  string
	accountID string
	baseURL   string
	http      *httpclient.Client
}

func newCloudflareAdapter(cfg ResolvedConfig, client *httpclient.Client) *cloudflareAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = defaultCloudflareBaseURL
	}
	return &cloudflareAdapter{
		model:     cfg.Model,
		apiToken:  cfg.APIKey,
		accountID: cfg.AccountID,
		baseURL:   strings.TrimRight(base, "/"),
		http:      client,
	}
}

func (a *cloudflareAdapter) Provider() models.ProviderKind { return models.ProviderCloudflare }
func (a *cloudflareAdapter) Model() string { return a.model }

func (a *cloudflareAdapter) Complete(ctx context.Context, opts CompletionOptions) (*CompletionResult, error) {
	endpoint := fmt.Sprintf("%s/client/v4/accounts/%s/ai/v1/chat/completions", a.baseURL, a.accountID)
	headers := map[string]string{"Authorization": "Bearer " + a.apiToken}

	var resp chatResponse
	if err := post(ctx, a.http, string(models.ProviderCloudflare), endpoint, headers, buildChatRequest(a.model, opts), &resp); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(extractCloudflareText(resp))
	if text == "" {
		return nil, errs.NewAIEmptyResponseError(string(models.ProviderCloudflare), describeShape(resp))
	}

	result := &CompletionResult{Text: text}
	switch {
	case resp.Usage != nil:
		result.Usage = &Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	case resp.Result != nil && resp.Result.Usage != nil:
		result.Usage = &Usage{InputTokens: resp.Result.Usage.PromptTokens, OutputTokens: resp.Result.Usage.CompletionTokens}
	}
	return result, nil
}

// extractCloudflareText checks, in order: content as a string, content as
// a part array, the reasoning and refusal fields, a parsed object, and the
// native result.response envelope.
func extractCloudflareText(resp chatResponse) string {
	if len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message
		if text, _ := contentText(msg.Content); strings.TrimSpace(text) != "" {
			return text
		}
		for _, candidate := range []string{msg.ReasoningContent, msg.Reasoning, msg.Refusal} {
			if strings.TrimSpace(candidate) != "" {
				return candidate
			}
		}
		if text := rawObjectText(msg.Parsed); text != "" {
			return text
		}
	}
	if resp.Result != nil {
		if text := rawObjectText(resp.Result.Response); text != "" {
			return text
		}
	}
	return ""
}

// rawObjectText returns a JSON string's value, or an object's compact
// encoding. Null and empty values yield "".
func rawObjectText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj) > 0 {
		return string(raw)
	}
	return ""
}

// describeShape summarises an empty response for diagnostics.
func describeShape(resp chatResponse) string {
	if len(resp.Choices) == 0 {
		if resp.Result != nil {
			return fmt.Sprintf("no choices, result.response=%s", abbreviate(resp.Result.Response))
		}
		return "no choices"
	}
	c := resp.Choices[0]
	_, contentShape := contentText(c.Message.Content)
	if contentShape == "" {
		contentShape = "null"
	}
	return fmt.Sprintf("choices=%d content=%s reasoning=%t refusal=%t parsed=%s finish_reason=%s",
		len(resp.Choices), contentShape,
		c.Message.Reasoning != "" || c.Message.ReasoningContent != "",
		c.Message.Refusal != "", abbreviate(c.Message.Parsed), c.FinishReason)
}

func abbreviate(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "absent"
	}
	s := string(raw)
	if len(s) > 64 {
		s = s[:64] + "..."
	}
	return s
}
