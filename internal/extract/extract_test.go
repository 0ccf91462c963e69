package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubBackend struct {
	gen Generation
	err error
	req GenerateRequest
}

func (s *stubBackend) Generate(_ context.Context, req GenerateRequest) (Generation, error) {
	s.req = req
	return s.gen, s.err
}

func TestExtractToolUse(t *testing.T) {
	backend := &stubBackend{gen: Generation{
		Content: []ContentBlock{
			{Type: "text", Text: "thinking..."},
			{Type: "tool_use", Name: "create_issue", Input: json.RawMessage(`{"title":"Site down","priority":1,"labels":["Bug"]}`)},
		},
		StopReason: "tool_use",
	}}
	e := &Engine{Backend: backend}
	res, err := e.Extract(context.Background(), "ws-1", "triage alerts", map[string]any{"alert": "red"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Fields == nil {
		t.Fatalf("expected tool fields, got fallback %q", res.RawText)
	}
	if res.Fields.Title != "Site down" {
		t.Fatalf("title = %q", res.Fields.Title)
	}
	if res.Fields.Priority == nil || *res.Fields.Priority != 1 {
		t.Fatalf("priority = %v", res.Fields.Priority)
	}
	if len(res.Fields.Labels) != 1 || res.Fields.Labels[0] != "Bug" {
		t.Fatalf("labels = %v", res.Fields.Labels)
	}
	if backend.req.ToolChoice != "create_issue" {
		t.Fatalf("tool choice = %q", backend.req.ToolChoice)
	}
	if len(backend.req.Tools) != 1 || backend.req.Tools[0].Name != "create_issue" {
		t.Fatalf("tools = %+v", backend.req.Tools)
	}
}

func TestExtractTextFallback(t *testing.T) {
	backend := &stubBackend{gen: Generation{
		Content: []ContentBlock{{Type: "text", Text: "  Payment webhook failed  "}},
	}}
	e := &Engine{Backend: backend}
	res, err := e.Extract(context.Background(), "ws-1", "", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Fields != nil {
		t.Fatalf("expected fallback, got fields %+v", res.Fields)
	}
	if got := res.Resolve().Title; got != "Payment webhook failed" {
		t.Fatalf("fallback title = %q", got)
	}
}

func TestExtractEmptyCompletionFallsBackToDefaultTitle(t *testing.T) {
	e := &Engine{Backend: &stubBackend{gen: Generation{}}}
	res, err := e.Extract(context.Background(), "ws-1", "", nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := res.Resolve().Title; got != "Webhook issue" {
		t.Fatalf("title = %q", got)
	}
}

func TestExtractTitlelessToolUseFallsBack(t *testing.T) {
	backend := &stubBackend{gen: Generation{
		Content: []ContentBlock{
			{Type: "tool_use", Name: "create_issue", Input: json.RawMessage(`{}`)},
			{Type: "text", Text: "couldn't parse the payload"},
		},
	}}
	e := &Engine{Backend: backend}
	res, err := e.Extract(context.Background(), "ws-1", "", nil)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Fields != nil {
		t.Fatalf("argument-less invocation should fall back")
	}
	if got := res.Resolve().Title; got != "couldn't parse the payload" {
		t.Fatalf("title = %q", got)
	}
}

func TestExtractBackendErrorSurfaces(t *testing.T) {
	e := &Engine{Backend: &stubBackend{err: errors.New("connect: refused")}}
	_, err := e.Extract(context.Background(), "ws-1", "", nil)
	if err == nil {
		t.Fatalf("expected backend error")
	}
}

func TestAnthropicBackendRequestShape(t *testing.T) {
	var got struct {
		Model      string `json:"model"`
		System     string `json:"system"`
		MaxTokens  int    `json:"max_tokens"`
		ToolChoice struct {
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"tool_choice"`
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":       "claude-test",
			"stop_reason": "tool_use",
			"content": []map[string]any{
				{"type": "tool_use", "name": "create_issue", "input": map[string]any{"title": "ok"}},
			},
			"usage": map[string]int{"input_tokens": 12, "output_tokens": 7},
		})
	}))
	defer srv.Close()

	b := &AnthropicBackend{APIKey: "sk-test", Model: "claude-test", BaseURL: srv.URL, MaxTokens: 256}
	gen, err := b.Generate(context.Background(), GenerateRequest{
		System:     "do the thing",
		Prompt:     "payload",
		Tools:      []Tool{createIssueTool()},
		ToolChoice: "create_issue",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if gotHeaders.Get("x-api-key") != "sk-test" {
		t.Fatalf("x-api-key = %q", gotHeaders.Get("x-api-key"))
	}
	if gotHeaders.Get("anthropic-version") != anthropicVersion {
		t.Fatalf("anthropic-version = %q", gotHeaders.Get("anthropic-version"))
	}
	if got.Model != "claude-test" || got.MaxTokens != 256 {
		t.Fatalf("request = %+v", got)
	}
	if got.ToolChoice.Type != "tool" || got.ToolChoice.Name != "create_issue" {
		t.Fatalf("tool_choice = %+v", got.ToolChoice)
	}
	if gen.Usage.InputTokens != 12 || gen.Usage.OutputTokens != 7 {
		t.Fatalf("usage = %+v", gen.Usage)
	}
	if len(gen.Content) != 1 || gen.Content[0].Type != "tool_use" {
		t.Fatalf("content = %+v", gen.Content)
	}
}

func TestAnthropicBackendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "invalid_request_error", "message": "max_tokens required"},
		})
	}))
	defer srv.Close()

	b := &AnthropicBackend{APIKey: "sk-test", Model: "claude-test", BaseURL: srv.URL}
	_, err := b.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	if err == nil {
		t.Fatalf("expected api error")
	}
}
