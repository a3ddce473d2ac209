package ai

import (
	"context"
	"encoding/json"
	"strings"

	errs "lead-pipeline/internal/common/errors"
	httpclient "lead-pipeline/internal/common/http"
	"lead-pipeline/internal/models"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// chatResponse covers both the OpenAI shape and the Workers AI native
// envelope. Message fields stay raw because providers disagree on them.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content          json.RawMessage `json:"content"`
			Reasoning        string          `json:"reasoning"`
			ReasoningContent string          `json:"reasoning_content"`
			Refusal          string          `json:"refusal"`
			Parsed           json.RawMessage `json:"parsed"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage  *chatUsage `json:"usage"`
	Result *struct {
		Response json.RawMessage `json:"response"`
		Usage    *chatUsage      `json:"usage"`
	} `json:"result"`
}

func buildChatRequest(model string, opts CompletionOptions) chatRequest {
	req := chatRequest{
		Model:       model,
		MaxTokens:   maxTokens(opts),
		Temperature: opts.Temperature,
	}
	if opts.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: opts.Prompt})
	if opts.JSON {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return req
}

// openAIAdapter speaks chat completions with an optional json_object
// response format. Usage comes from the usage object.
type openAIAdapter struct {
	model   string
	apiKey  string
	baseURL string
	http    *httpclient.Client
}

func newOpenAIAdapter(cfg ResolvedConfig, client *httpclient.Client) *openAIAdapter {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	return &openAIAdapter{model: cfg.Model, apiKey: cfg.APIKey, baseURL: strings.TrimRight(base, "/"), http: client}
}

func (a *openAIAdapter) Provider() models.ProviderKind { return models.ProviderOpenAI }
func (a *openAIAdapter) Model() string { return a.model }

func (a *openAIAdapter) Complete(ctx context.Context, opts CompletionOptions) (*CompletionResult, error) {
	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}
	if err := post(ctx, a.http, string(models.ProviderOpenAI), a.baseURL+"/v1/chat/completions", headers, buildChatRequest(a.model, opts), &resp); err != nil {
		return nil, err
	}

	var text string
	if len(resp.Choices) > 0 {
		text, _ = contentText(resp.Choices[0].Message.Content)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.NewAIEmptyResponseError(string(models.ProviderOpenAI), describeShape(resp))
	}

	result := &CompletionResult{Text: text}
	if resp.Usage != nil {
		result.Usage = &Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	}
	return result, nil
}

// contentText reads a message content that is either a string or an array
// of typed parts. The second return names the shape that matched.
func contentText(raw json.RawMessage) (string, string) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, "string"
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var sb strings.Builder
		for _, p := range parts {
			if p.Type == "" || p.Type == "text" || p.Type == "output_text" {
				sb.WriteString(p.Text)
			}
		}
		return sb.String(), "parts"
	}

	return "", "unknown"
}
