package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"boardflow/internal/activity"
	"boardflow/internal/config"
	"boardflow/internal/db"
	"boardflow/internal/domain"
	"boardflow/internal/engine"
	"boardflow/internal/extract"
	"boardflow/internal/migrate"
	"boardflow/internal/repo"
	boardflowsdk "boardflow/sdk/go"
)

type stubExtractor struct {
	result extract.Result
	err    error
}

func (s *stubExtractor) Extract(_ context.Context, _, _ string, _ any) (extract.Result, error) {
	return s.result, s.err
}

type testServer struct {
	URL       string
	Engine    *engine.Engine
	Extractor *stubExtractor
	Key       string // api key for the default workspace
	Workspace domain.Workspace
	Webhook   domain.Webhook
	client    *http.Client
	close     func()
}

func (s *testServer) Close() { s.close() }

func newTestServer(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	ext := &stubExtractor{result: extract.Result{Fields: &extract.Fields{Title: "stub issue"}}}
	e := &engine.Engine{
		DB:         conn,
		Repo:       repo.Repo{DB: conn},
		Activities: activity.Writer{DB: conn},
		Extractor:  ext,
		Config:     cfg,
		Now:        func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	}
	ctx := context.Background()
	ws, err := e.CreateWorkspace(ctx, "acme", "Acme", "ENG")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	hook, err := e.CreateWebhook(ctx, engine.CreateWebhookParams{
		WorkspaceID: ws.ID, Slug: "alerts", Prompt: "triage",
	})
	if err != nil {
		t.Fatalf("create webhook: %v", err)
	}
	_, plaintext, err := e.CreateAPIKey(ctx, ws.ID, "test")
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}

	handler, err := New(Config{Engine: e, BasePath: "/v1", RateLimit: limiter})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	return &testServer{
		URL:       "http://" + ln.Addr().String(),
		Engine:    e,
		Extractor: ext,
		Key:       plaintext,
		Workspace: ws,
		Webhook:   hook,
		client:    &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
}

func (s *testServer) deliver(t *testing.T, key, workspaceSlug, webhookSlug, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost,
		s.URL+"/api/webhooks/"+workspaceSlug+"/"+webhookSlug,
		bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var parsed map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			t.Fatalf("response not json: %v (%s)", err, raw)
		}
	}
	return resp, parsed
}

func TestIngestSuccessContract(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()
	s.Extractor.result = extract.Result{Fields: &extract.Fields{Title: "Site down", Priority: intPtr(1)}}

	resp, body := s.deliver(t, s.Key, "acme", "alerts", `{"data":{"title":"Site down"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
	issue, ok := body["issue"].(map[string]any)
	if !ok {
		t.Fatalf("issue missing: %v", body)
	}
	if issue["identifier"] != "ENG-1" || issue["title"] != "Site down" {
		t.Fatalf("issue = %v", issue)
	}
	if issue["status"] != "todo" || issue["priority"] != float64(1) {
		t.Fatalf("issue = %v", issue)
	}
	for _, field := range []string{"id", "identifier", "title", "status", "priority"} {
		if _, ok := issue[field]; !ok {
			t.Fatalf("issue missing field %q: %v", field, issue)
		}
	}
}

func TestIngestErrorContract(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()

	otherWS, err := s.Engine.CreateWorkspace(context.Background(), "rival", "Rival", "RV")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	_, otherKey, err := s.Engine.CreateAPIKey(context.Background(), otherWS.ID, "other")
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}
	disabled, err := s.Engine.CreateWebhook(context.Background(), engine.CreateWebhookParams{
		WorkspaceID: s.Workspace.ID, Slug: "off", Prompt: "p",
	})
	if err != nil {
		t.Fatalf("create webhook: %v", err)
	}
	if err := s.Engine.Repo.SetWebhookActive(context.Background(), disabled.ID, false); err != nil {
		t.Fatalf("disable webhook: %v", err)
	}

	cases := []struct {
		name       string
		key        string
		workspace  string
		webhook    string
		body       string
		extractErr error
		wantStatus int
		wantError  string
	}{
		{"missing key", "", "acme", "alerts", `{}`, nil, http.StatusUnauthorized, "Invalid API key"},
		{"unknown key", "bf_bogus", "acme", "alerts", `{}`, nil, http.StatusUnauthorized, "Invalid API key"},
		{"bad json", s.Key, "acme", "alerts", `not json`, nil, http.StatusBadRequest, "Invalid JSON body"},
		{"foreign key", otherKey, "acme", "alerts", `{}`, nil, http.StatusForbidden, "API key does not have access to this workspace"},
		{"unknown workspace", s.Key, "ghost", "alerts", `{}`, nil, http.StatusNotFound, "Workspace not found"},
		{"unknown webhook", s.Key, "acme", "ghost", `{}`, nil, http.StatusNotFound, "Webhook not found or disabled"},
		{"disabled webhook", s.Key, "acme", "off", `{}`, nil, http.StatusNotFound, "Webhook not found or disabled"},
		{"extraction failure", s.Key, "acme", "alerts", `{}`, errors.New("backend down"), http.StatusInternalServerError, "Failed to process webhook data"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s.Extractor.err = tc.extractErr
			defer func() { s.Extractor.err = nil }()
			resp, body := s.deliver(t, tc.key, tc.workspace, tc.webhook, tc.body)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", resp.StatusCode, tc.wantStatus, body)
			}
			if body["error"] != tc.wantError {
				t.Fatalf("error = %v, want %q", body["error"], tc.wantError)
			}
		})
	}

	issues, err := s.Engine.Repo.ListIssues(context.Background(), repo.IssueFilters{WorkspaceID: s.Workspace.ID})
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("error paths must not create issues, got %d", len(issues))
	}
}

func TestIngestNoColumnsContract(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()

	cfg := config.Default()
	cfg.Board.Columns = nil
	s.Engine.Config = cfg
	ws, err := s.Engine.CreateWorkspace(context.Background(), "bare", "Bare", "BR")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	if _, err := s.Engine.CreateWebhook(context.Background(), engine.CreateWebhookParams{
		WorkspaceID: ws.ID, Slug: "feed", Prompt: "p",
	}); err != nil {
		t.Fatalf("create webhook: %v", err)
	}
	_, key, err := s.Engine.CreateAPIKey(context.Background(), ws.ID, "bare")
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}

	resp, body := s.deliver(t, key, "bare", "feed", `{}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d (%v)", resp.StatusCode, body)
	}
	if body["error"] != "Workspace has no columns" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestIngestRateLimit(t *testing.T) {
	s := newTestServer(t, NewRateLimiter(0.001, 2))
	defer s.Close()

	for i := 0; i < 2; i++ {
		resp, body := s.deliver(t, s.Key, "acme", "alerts", `{}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d (%v)", i, resp.StatusCode, body)
		}
	}
	resp, body := s.deliver(t, s.Key, "acme", "alerts", `{}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 (%v)", resp.StatusCode, body)
	}
	if body["error"] != "Rate limit exceeded" {
		t.Fatalf("error = %v", body["error"])
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("429 must carry Retry-After")
	}
}

func TestSDKDeliver(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()
	s.Extractor.result = extract.Result{Fields: &extract.Fields{Title: "from sdk"}}

	client := boardflowsdk.New(s.URL, s.Key)
	issue, err := client.Deliver(context.Background(), "acme", "alerts", map[string]any{"event": "deploy"})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if issue.Identifier != "ENG-1" || issue.Title != "from sdk" {
		t.Fatalf("issue = %+v", issue)
	}

	_, err = client.Deliver(context.Background(), "ghost", "alerts", nil)
	var apiErr *boardflowsdk.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "Workspace not found" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestCRUDRequiresAuth(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()

	resp, err := s.client.Get(s.URL + "/v1/workspaces")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp, err = s.client.Get(s.URL + "/v1/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}

func TestCRUDWithAPIKeyScopedToWorkspace(t *testing.T) {
	s := newTestServer(t, nil)
	defer s.Close()

	otherWS, err := s.Engine.CreateWorkspace(context.Background(), "rival", "Rival", "RV")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	_ = otherWS

	get := func(path string) *http.Response {
		req, _ := http.NewRequest(http.MethodGet, s.URL+path, nil)
		req.Header.Set("X-API-Key", s.Key)
		resp, err := s.client.Do(req)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		return resp
	}

	resp := get("/v1/workspaces/acme")
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("own workspace: status = %d (%s)", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"slug":"acme"`) {
		t.Fatalf("body = %s", body)
	}

	resp = get("/v1/workspaces/rival")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign workspace: status = %d, want 403", resp.StatusCode)
	}
}

func intPtr(v int) *int { return &v }
