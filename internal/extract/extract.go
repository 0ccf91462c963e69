package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"boardflow/internal/domain"
)

// createIssueTool is the single capability exposed to the model. Its input
// schema is the candidate-issue contract; the model is instructed that it
// must invoke it.
const createIssueToolName = "create_issue"

const fallbackTitle = "Webhook issue"

// Fields is a candidate issue as produced by the model.
type Fields struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// Result is the outcome of one extraction call. Exactly one branch applies:
// Fields is set when the model invoked create_issue with a usable title,
// otherwise RawText carries the plain completion for the title fallback.
type Result struct {
	Fields  *Fields
	RawText string
}

// Resolve collapses the result into concrete fields. The fallback path never
// fails: an empty completion still yields a usable title.
func (r Result) Resolve() Fields {
	if r.Fields != nil {
		return *r.Fields
	}
	title := strings.TrimSpace(r.RawText)
	if title == "" {
		title = fallbackTitle
	}
	return Fields{Title: title}
}

// Tool describes a callable capability offered to the backend.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// GenerateRequest is one generation call against the backend.
type GenerateRequest struct {
	System     string
	Prompt     string
	Tools      []Tool
	ToolChoice string // tool name to force, empty for auto
}

// ContentBlock is a single block of backend output.
type ContentBlock struct {
	Type  string          // "text" or "tool_use"
	Text  string          // set for text blocks
	Name  string          // set for tool_use blocks
	Input json.RawMessage // set for tool_use blocks
}

// Usage carries the backend's token accounting for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Generation is a completed backend call.
type Generation struct {
	Content    []ContentBlock
	StopReason string
	Model      string
	Usage      Usage
}

// Backend issues generation requests to a language-model service.
type Backend interface {
	Generate(ctx context.Context, req GenerateRequest) (Generation, error)
}

// UsageRecorder persists token-usage accounting rows.
type UsageRecorder interface {
	RecordTokenUsage(ctx context.Context, u domain.TokenUsage) error
}

// Engine turns free-form webhook payloads into candidate issues.
type Engine struct {
	Backend Backend
	Usage   UsageRecorder // optional
	Logger  *log.Logger   // optional
}

func (e *Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func createIssueTool() Tool {
	return Tool{
		Name:        createIssueToolName,
		Description: "Create a board issue from the webhook payload.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short issue title.",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Longer issue description, markdown allowed.",
				},
				"status": map[string]any{
					"type": "string",
					"enum": []string{"backlog", "todo", "in_progress", "done", "canceled"},
				},
				"priority": map[string]any{
					"type":    "integer",
					"minimum": 0,
					"maximum": 4,
				},
				"labels": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required": []string{"title"},
		},
	}
}

const systemPreamble = "You turn raw webhook payloads into board issues. " +
	"You must call the create_issue tool exactly once with the extracted fields."

// Extract issues a single generation call and scans the output for a
// create_issue invocation. A backend error is returned as-is; no retry.
func (e *Engine) Extract(ctx context.Context, workspaceID, prompt string, payload any) (Result, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("serialize payload: %w", err)
	}
	system := systemPreamble
	if strings.TrimSpace(prompt) != "" {
		system += "\n\n" + prompt
	}
	gen, err := e.Backend.Generate(ctx, GenerateRequest{
		System:     system,
		Prompt:     "Webhook payload:\n" + string(data),
		Tools:      []Tool{createIssueTool()},
		ToolChoice: createIssueToolName,
	})
	if err != nil {
		return Result{}, fmt.Errorf("generation backend: %w", err)
	}
	e.recordUsage(workspaceID, gen)

	var texts []string
	for _, block := range gen.Content {
		switch block.Type {
		case "tool_use":
			if block.Name != createIssueToolName {
				continue
			}
			var fields Fields
			if err := json.Unmarshal(block.Input, &fields); err != nil {
				continue
			}
			if strings.TrimSpace(fields.Title) == "" {
				// Argument-less invocation; fall through to the text fallback.
				continue
			}
			return Result{Fields: &fields}, nil
		case "text":
			texts = append(texts, block.Text)
		}
	}
	return Result{RawText: strings.TrimSpace(strings.Join(texts, "\n"))}, nil
}

// recordUsage writes the accounting row on a detached goroutine. The request
// context may be gone by the time the insert runs, so a fresh one is used.
func (e *Engine) recordUsage(workspaceID string, gen Generation) {
	if e.Usage == nil {
		return
	}
	u := domain.TokenUsage{
		WorkspaceID:  workspaceID,
		Model:        gen.Model,
		Source:       "webhook",
		InputTokens:  gen.Usage.InputTokens,
		OutputTokens: gen.Usage.OutputTokens,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Usage.RecordTokenUsage(ctx, u); err != nil {
			e.logger().Printf("extract: record token usage failed: %v", err)
		}
	}()
}
