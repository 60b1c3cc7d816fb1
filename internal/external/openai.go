package external

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Beez1/bounceinsights/internal/types"
)

const openAIAPIBase = "https://api.openai.com/v1"

// OpenAIClient calls the chat completions endpoint for text and vision.
type OpenAIClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewOpenAIClient creates an OpenAI chat client.
func NewOpenAIClient(base *BaseClient, apiKey, baseURL string, logger *slog.Logger) *OpenAIClient {
	if baseURL == "" {
		baseURL = openAIAPIBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		base:    base,
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatMessage content is either a plain string or a list of parts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatCompletionResponse struct {
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends a chat completion and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, in ChatRequest) (ChatResponse, error) {
	body, err := json.Marshal(buildChatRequest(in))
	if err != nil {
		return ChatResponse{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal chat request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var out chatCompletionResponse
	if err := c.base.DoJSON(req, "openai", &out); err != nil {
		return ChatResponse{}, err
	}
	if len(out.Choices) == 0 {
		return ChatResponse{}, types.NewAppError(types.ErrCodeUpstreamBadResponse, "openai returned no choices", nil)
	}

	choice := out.Choices[0]
	c.logger.DebugContext(ctx, "chat completion finished",
		"model", out.Model,
		"tokens", out.Usage.TotalTokens,
		"finish_reason", choice.FinishReason,
	)
	return ChatResponse{
		Content:    choice.Message.Content,
		Model:      out.Model,
		TokensUsed: out.Usage.TotalTokens,
		Choice:     choice,
	}, nil
}

func buildChatRequest(in ChatRequest) chatCompletionRequest {
	msgs := make([]chatMessage, 0, len(in.Messages))
	for _, m := range in.Messages {
		if len(m.ImageURLs) == 0 {
			msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Text})
			continue
		}
		parts := make([]contentPart, 0, len(m.ImageURLs)+1)
		if m.Text != "" {
			parts = append(parts, contentPart{Type: "text", Text: m.Text})
		}
		for _, u := range m.ImageURLs {
			parts = append(parts, contentPart{
				Type:     "image_url",
				ImageURL: &imageRef{URL: u, Detail: m.ImageDetail},
			})
		}
		msgs = append(msgs, chatMessage{Role: m.Role, Content: parts})
	}
	return chatCompletionRequest{
		Model:       in.Model,
		Messages:    msgs,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
	}
}

// Float is a helper for ChatRequest.Temperature.
func Float(v float64) *float64 { return &v }

var _ TextGenerator = (*OpenAIClient)(nil)
