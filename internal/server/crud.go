package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"boardflow/internal/engine"
	"boardflow/internal/repo"
)

type workspacePath struct {
	WorkspaceSlug string `path:"workspace_slug"`
}

func registerWorkspaces(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-workspace",
		Method:        http.MethodPost,
		Path:          "/workspaces",
		Summary:       "Create workspace",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateWorkspaceRequest `json:"body"`
	}) (*struct {
		Body WorkspaceResponse `json:"body"`
	}, error) {
		p, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		if p.WorkspaceID != "" {
			// Workspace-scoped keys cannot create new workspaces.
			return nil, newAPIError(http.StatusForbidden, "forbidden", "operator token required", nil)
		}
		ws, err := e.CreateWorkspace(ctx, input.Body.Slug, input.Body.Name, input.Body.Identifier)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkspaceResponse `json:"body"`
		}{Body: workspaceResponse(ws)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workspaces",
		Method:      http.MethodGet,
		Path:        "/workspaces",
		Summary:     "List workspaces",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []WorkspaceResponse `json:"body"`
	}, error) {
		p, _ := principalFromContext(ctx)
		items, err := e.Repo.ListWorkspaces(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := []WorkspaceResponse{}
		for _, ws := range items {
			if p.WorkspaceID != "" && p.WorkspaceID != ws.ID {
				continue
			}
			out = append(out, workspaceResponse(ws))
		}
		return &struct {
			Body []WorkspaceResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workspace",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_slug}",
		Summary:     "Get workspace",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *workspacePath) (*struct {
		Body WorkspaceResponse `json:"body"`
	}, error) {
		ws, err := e.Repo.GetWorkspaceBySlug(ctx, input.WorkspaceSlug)
		if err != nil {
			return nil, handleError(err)
		}
		if authErr := requireWorkspaceAccess(ctx, ws.ID); authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body WorkspaceResponse `json:"body"`
		}{Body: workspaceResponse(ws)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-columns",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_slug}/columns",
		Summary:     "List board columns",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *workspacePath) (*struct {
		Body []ColumnResponse `json:"body"`
	}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		columns, err := e.Repo.ListColumns(ctx, wsID)
		if err != nil {
			return nil, handleError(err)
		}
		out := []ColumnResponse{}
		for _, c := range columns {
			out = append(out, columnResponse(c))
		}
		return &struct {
			Body []ColumnResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "workspace-usage",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_slug}/usage",
		Summary:     "Extraction token usage totals",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *workspacePath) (*struct {
		Body UsageResponse `json:"body"`
	}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		in, out, err := e.Repo.SumTokenUsage(ctx, wsID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UsageResponse `json:"body"`
		}{Body: UsageResponse{WorkspaceID: wsID, InputTokens: in, OutputTokens: out}}, nil
	})
}

func registerWebhooks(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-webhook",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_slug}/webhooks",
		Summary:       "Create webhook",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		WorkspaceSlug string               `path:"workspace_slug"`
		Body          CreateWebhookRequest `json:"body"`
	}) (*struct {
		Body WebhookResponse `json:"body"`
	}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		params := engine.CreateWebhookParams{
			WorkspaceID:     wsID,
			Slug:            input.Body.Slug,
			Name:            input.Body.Name,
			Prompt:          input.Body.Prompt,
			DefaultStatus:   input.Body.DefaultStatus,
			DefaultPriority: input.Body.DefaultPriority,
		}
		if len(input.Body.DefaultLabelIDs) > 0 {
			data, err := json.Marshal(input.Body.DefaultLabelIDs)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid default_label_ids", nil)
			}
			asStr := string(data)
			params.DefaultLabelIDs = &asStr
		}
		hook, err := e.CreateWebhook(ctx, params)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WebhookResponse `json:"body"`
		}{Body: webhookResponse(hook)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-webhooks",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_slug}/webhooks",
		Summary:     "List webhooks",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *workspacePath) (*struct {
		Body []WebhookResponse `json:"body"`
	}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		hooks, err := e.Repo.ListWebhooks(ctx, wsID)
		if err != nil {
			return nil, handleError(err)
		}
		out := []WebhookResponse{}
		for _, h := range hooks {
			out = append(out, webhookResponse(h))
		}
		return &struct {
			Body []WebhookResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-webhook-active",
		Method:      http.MethodPatch,
		Path:        "/workspaces/{workspace_slug}/webhooks/{webhook_slug}/active",
		Summary:     "Enable or disable a webhook",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		WorkspaceSlug string                  `path:"workspace_slug"`
		WebhookSlug   string                  `path:"webhook_slug"`
		Body          SetWebhookActiveRequest `json:"body"`
	}) (*struct {
		Body WebhookResponse `json:"body"`
	}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		hook, err := e.Repo.GetWebhookBySlug(ctx, wsID, input.WebhookSlug)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.SetWebhookActive(ctx, hook.ID, input.Body.IsActive); err != nil {
			return nil, handleError(err)
		}
		hook.IsActive = input.Body.IsActive
		return &struct {
			Body WebhookResponse `json:"body"`
		}{Body: webhookResponse(hook)}, nil
	})
}

func registerLabels(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-label",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_slug}/labels",
		Summary:       "Create label",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		WorkspaceSlug string             `path:"workspace_slug"`
		Body          CreateLabelRequest `json:"body"`
	}) (*struct {
		Body LabelResponse `json:"body"`
	}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.CreateLabel(ctx, wsID, input.Body.Name, input.Body.Color)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LabelResponse `json:"body"`
		}{Body: labelResponse(l)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-labels",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_slug}/labels",
		Summary:     "List labels",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *workspacePath) (*struct {
		Body []LabelResponse `json:"body"`
	}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		labels, err := e.Repo.ListLabels(ctx, wsID)
		if err != nil {
			return nil, handleError(err)
		}
		out := []LabelResponse{}
		for _, l := range labels {
			out = append(out, labelResponse(l))
		}
		return &struct {
			Body []LabelResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerIssues(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-issues",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_slug}/issues",
		Summary:     "List issues",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		WorkspaceSlug string `path:"workspace_slug"`
		ColumnID      string `query:"column_id"`
		Status        string `query:"status"`
		Limit         int    `query:"limit" default:"100"`
	}) (*struct {
		Body []IssueResponse `json:"body"`
	}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		issues, err := e.Repo.ListIssues(ctx, repo.IssueFilters{
			WorkspaceID: wsID,
			ColumnID:    input.ColumnID,
			Status:      input.Status,
			Limit:       input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := []IssueResponse{}
		for _, i := range issues {
			out = append(out, issueResponse(i, nil))
		}
		return &struct {
			Body []IssueResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-issue",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_slug}/issues/{identifier}",
		Summary:     "Get issue by identifier",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		WorkspaceSlug string `path:"workspace_slug"`
		Identifier    string `path:"identifier"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		issue, err := e.Repo.GetIssueByIdentifier(ctx, wsID, input.Identifier)
		if err != nil {
			return nil, handleError(err)
		}
		labelIDs, err := e.Repo.ListIssueLabelIDs(ctx, issue.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: issueResponse(issue, labelIDs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-issue-activities",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_slug}/issues/{identifier}/activities",
		Summary:     "Issue activity log",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		WorkspaceSlug string `path:"workspace_slug"`
		Identifier    string `path:"identifier"`
	}) (*struct {
		Body []ActivityResponse `json:"body"`
	}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		issue, err := e.Repo.GetIssueByIdentifier(ctx, wsID, input.Identifier)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListIssueActivities(ctx, issue.ID)
		if err != nil {
			return nil, handleError(err)
		}
		out := []ActivityResponse{}
		for _, a := range items {
			out = append(out, activityResponse(a))
		}
		return &struct {
			Body []ActivityResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerAPIKeys(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/workspaces/{workspace_slug}/apikeys",
		Summary:       "Mint API key",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		WorkspaceSlug string              `path:"workspace_slug"`
		Body          CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		key, plaintext, err := e.CreateAPIKey(ctx, wsID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		resp := apiKeyResponse(key)
		resp.Key = plaintext
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/workspaces/{workspace_slug}/apikeys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *workspacePath) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.Repo.ListAPIKeys(ctx, wsID)
		if err != nil {
			return nil, handleError(err)
		}
		out := []APIKeyResponse{}
		for _, k := range keys {
			out = append(out, apiKeyResponse(k))
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/workspaces/{workspace_slug}/apikeys/{id}",
		Summary:     "Revoke API key",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		WorkspaceSlug string `path:"workspace_slug"`
		ID            string `path:"id"`
	}) (*struct{}, error) {
		wsID, authErr := resolveWorkspace(ctx, e, input.WorkspaceSlug)
		if authErr != nil {
			return nil, authErr
		}
		key, err := e.Repo.ListAPIKeys(ctx, wsID)
		if err != nil {
			return nil, handleError(err)
		}
		found := false
		for _, k := range key {
			if k.ID == input.ID {
				found = true
				break
			}
		}
		if !found {
			return nil, newAPIError(http.StatusNotFound, "not_found", "api key not found", nil)
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
