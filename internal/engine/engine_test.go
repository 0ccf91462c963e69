package engine_test

import (
	"strings"
	"testing"

	"boardflow/internal/engine"
	"boardflow/internal/repo"
)

func TestCreateWorkspaceSeedsColumnsInOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	ws := env.createWorkspace(t, "acme", "eng")

	if ws.Identifier != "ENG" {
		t.Fatalf("identifier = %q, want upper-cased prefix", ws.Identifier)
	}
	columns, err := env.Engine.Repo.ListColumns(env.Ctx, ws.ID)
	if err != nil {
		t.Fatalf("list columns: %v", err)
	}
	wantStatuses := []string{"backlog", "todo", "in_progress", "done", "canceled"}
	if len(columns) != len(wantStatuses) {
		t.Fatalf("seeded %d columns, want %d", len(columns), len(wantStatuses))
	}
	for i, c := range columns {
		if c.Status != wantStatuses[i] {
			t.Fatalf("column %d status = %q, want %q", i, c.Status, wantStatuses[i])
		}
		if c.Position != i {
			t.Fatalf("column %d position = %d", i, c.Position)
		}
	}
}

func TestCreateWorkspaceRejectsBadSlug(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, slug := range []string{"", "Has Space", "UPPER", "under_score"} {
		if _, err := env.Engine.CreateWorkspace(env.Ctx, slug, "", "X"); err == nil {
			t.Fatalf("slug %q should be rejected", slug)
		}
	}
}

func TestCreateWebhookValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ws := env.createWorkspace(t, "acme", "ENG")

	if _, err := env.Engine.CreateWebhook(env.Ctx, engine.CreateWebhookParams{
		WorkspaceID: ws.ID, Slug: "hook", Prompt: "",
	}); err == nil {
		t.Fatalf("empty prompt should be rejected")
	}
	if _, err := env.Engine.CreateWebhook(env.Ctx, engine.CreateWebhookParams{
		WorkspaceID: ws.ID, Slug: "hook", Prompt: "p", DefaultStatus: strPtr("urgent"),
	}); err == nil {
		t.Fatalf("unknown default status should be rejected")
	}
	if _, err := env.Engine.CreateWebhook(env.Ctx, engine.CreateWebhookParams{
		WorkspaceID: ws.ID, Slug: "hook", Prompt: "p", DefaultPriority: intPtr(9),
	}); err == nil {
		t.Fatalf("out-of-range priority should be rejected")
	}
	hook := env.createWebhook(t, engine.CreateWebhookParams{WorkspaceID: ws.ID, Slug: "hook"})
	if !hook.IsActive {
		t.Fatalf("new webhooks start active")
	}
}

func TestCreateAPIKeyRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	ws := env.createWorkspace(t, "acme", "ENG")

	key, plaintext, err := env.Engine.CreateAPIKey(env.Ctx, ws.ID, "ci")
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}
	if !strings.HasPrefix(plaintext, "bf_") {
		t.Fatalf("plaintext = %q", plaintext)
	}
	if key.KeyHash == plaintext {
		t.Fatalf("plaintext must not be stored")
	}
	got, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, repo.HashAPIKey(plaintext))
	if err != nil {
		t.Fatalf("lookup by hash: %v", err)
	}
	if got.ID != key.ID || got.WorkspaceID != ws.ID {
		t.Fatalf("lookup = %+v", got)
	}
}
