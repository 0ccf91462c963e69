package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const anthropicVersion = "2023-06-01"

// AnthropicBackend talks to the Anthropic Messages API. One request per
// Generate call, no retries; a failed call surfaces to the caller.
type AnthropicBackend struct {
	APIKey    string
	Model     string
	BaseURL   string // full messages endpoint URL
	MaxTokens int
	Client    *http.Client // optional
}

func (b *AnthropicBackend) httpClient() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return &http.Client{Timeout: 60 * time.Second}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type anthropicRequest struct {
	Model      string               `json:"model"`
	MaxTokens  int                  `json:"max_tokens"`
	System     string               `json:"system,omitempty"`
	Messages   []anthropicMessage   `json:"messages"`
	Tools      []anthropicTool      `json:"tools,omitempty"`
	ToolChoice *anthropicToolChoice `json:"tool_choice,omitempty"`
}

type anthropicContent struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anthropicResponse struct {
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Content    []anthropicContent `json:"content"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (b *AnthropicBackend) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	maxTokens := b.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	body := anthropicRequest{
		Model:     b.Model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	if req.ToolChoice != "" {
		body.ToolChoice = &anthropicToolChoice{Type: "tool", Name: req.ToolChoice}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Generation{}, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return Generation{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := b.httpClient().Do(httpReq)
	if err != nil {
		return Generation{}, fmt.Errorf("call messages api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Generation{}, fmt.Errorf("read response: %w", err)
	}
	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Generation{}, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return Generation{}, fmt.Errorf("messages api: %s: %s", parsed.Error.Type, parsed.Error.Message)
		}
		return Generation{}, fmt.Errorf("messages api: unexpected status %d", resp.StatusCode)
	}

	gen := Generation{
		Model:      parsed.Model,
		StopReason: parsed.StopReason,
		Usage: Usage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
		},
	}
	for _, c := range parsed.Content {
		gen.Content = append(gen.Content, ContentBlock{
			Type:  c.Type,
			Text:  c.Text,
			Name:  c.Name,
			Input: c.Input,
		})
	}
	return gen, nil
}
