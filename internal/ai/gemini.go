package ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	errs "lead-pipeline/internal/common/errors"
	httpclient "lead-pipeline/internal/common/http"
	"lead-pipeline/internal/models"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// geminiAdapter speaks generateContent: a single-shot prompt with an
// optional JSON response mime type. Usage comes from usageMetadata.
type geminiAdapter struct {
	model   string
	apiKey  string
	baseURL string
	http    *httpclient.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func newGeminiAdapter(cfg ResolvedConfig, client *httpclient.Client) *geminiAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = defaultGeminiBaseURL
	}
	return &geminiAdapter{model: cfg.Model, apiKey: cfg.APIKey, baseURL: strings.TrimRight(base, "/"), http: client}
}

func (a *geminiAdapter) Provider() models.ProviderKind { return models.ProviderGemini }
func (a *geminiAdapter) Model() string { return a.model }

func (a *geminiAdapter) Complete(ctx context.Context, opts CompletionOptions) (*CompletionResult, error) {
	req := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: opts.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: maxTokens(opts),
			Temperature:     opts.Temperature,
		},
	}
	if opts.System != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: opts.System}}}
	}
	if opts.JSON {
		req.GenerationConfig.ResponseMimeType = "application/json"
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.baseURL, url.PathEscape(a.model))
	var resp geminiResponse
	if err := post(ctx, a.http, string(models.ProviderGemini), endpoint, map[string]string{"x-goog-api-key": a.apiKey}, req, &resp); err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, c := range resp.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		shape := "no candidates"
		if len(resp.Candidates) > 0 {
			shape = "empty parts, finishReason=" + resp.Candidates[0].FinishReason
		}
		return nil, errs.NewAIEmptyResponseError(string(models.ProviderGemini), shape)
	}

	result := &CompletionResult{Text: text}
	if resp.UsageMetadata != nil {
		result.Usage = &Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
	return result, nil
}
