package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"boardflow/internal/activity"
	"boardflow/internal/config"
	"boardflow/internal/domain"
	"boardflow/internal/extract"
	"boardflow/internal/repo"
)

// Terminal ingest failures. The HTTP layer maps these onto status codes;
// anything else is an internal error.
var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrWebhookNotFound   = errors.New("webhook not found or disabled")
	ErrWorkspaceMismatch = errors.New("api key does not have access to this workspace")
	ErrInvalidJSON       = errors.New("invalid json body")
	ErrNoColumns         = errors.New("workspace has no columns")
)

// IngestRequest is one webhook delivery after authentication.
type IngestRequest struct {
	WorkspaceSlug string
	WebhookSlug   string
	// AuthWorkspaceID is the workspace the presented API key belongs to.
	AuthWorkspaceID string
	Body            []byte
}

// IngestWebhook runs the delivery pipeline: resolve webhook, parse body,
// extract fields, apply webhook defaults, resolve column and labels,
// allocate the identifier, persist, audit, invalidate the board view.
func (e *Engine) IngestWebhook(ctx context.Context, req IngestRequest) (domain.Issue, error) {
	ws, err := e.Repo.GetWorkspaceBySlug(ctx, req.WorkspaceSlug)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Issue{}, ErrWorkspaceNotFound
		}
		return domain.Issue{}, err
	}
	if ws.ID != req.AuthWorkspaceID {
		return domain.Issue{}, ErrWorkspaceMismatch
	}
	hook, err := e.Repo.GetWebhookBySlug(ctx, ws.ID, req.WebhookSlug)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Issue{}, ErrWebhookNotFound
		}
		return domain.Issue{}, err
	}
	if !hook.IsActive {
		return domain.Issue{}, ErrWebhookNotFound
	}

	payload, err := parsePayload(req.Body)
	if err != nil {
		return domain.Issue{}, ErrInvalidJSON
	}

	result, err := e.Extractor.Extract(ctx, ws.ID, hook.Prompt, payload)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("extract fields: %w", err)
	}
	fields := applyDefaults(result.Resolve(), hook)

	column, err := e.resolveColumn(ctx, ws.ID, fields.Status)
	if err != nil {
		return domain.Issue{}, err
	}

	seq, err := e.Repo.IncrementIssueCounter(ctx, ws.ID)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("allocate identifier: %w", err)
	}

	labelIDs, err := e.resolveLabels(ctx, ws.ID, fields.Labels, hook.DefaultLabelIDs)
	if err != nil {
		return domain.Issue{}, err
	}

	maxPos, err := e.Repo.MaxIssuePosition(ctx, column.ID)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("compute position: %w", err)
	}

	now := e.nowRFC3339()
	issue := domain.Issue{
		ID:          uuid.NewString(),
		WorkspaceID: ws.ID,
		ColumnID:    column.ID,
		Identifier:  fmt.Sprintf("%s-%d", ws.Identifier, seq),
		Title:       fields.Title,
		Status:      fields.Status,
		Priority:    priorityOrDefault(fields.Priority),
		Position:    maxPos + 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if fields.Description != "" {
		issue.Description = &fields.Description
	}
	if err := e.Repo.InsertIssue(ctx, issue); err != nil {
		return domain.Issue{}, fmt.Errorf("insert issue: %w", err)
	}
	if err := e.Repo.InsertIssueLabels(ctx, issue.ID, labelIDs); err != nil {
		return domain.Issue{}, fmt.Errorf("insert issue labels: %w", err)
	}
	err = e.Activities.Append(ctx, activity.TypeIssueCreated, ws.ID, issue.ID, hook.ID,
		activity.Payload{"source": "webhook", "webhook_id": hook.ID})
	if err != nil {
		// The issue row stays; a missing audit record is not rolled back.
		return domain.Issue{}, fmt.Errorf("append activity: %w", err)
	}

	if e.Invalidate != nil {
		e.Invalidate.Invalidate("/" + ws.Slug + "/board")
	}
	return issue, nil
}

// parsePayload decodes the body and unwraps an optional {"data": ...}
// envelope, so senders can post their payload raw or wrapped.
func parsePayload(body []byte) (any, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if obj, ok := payload.(map[string]any); ok {
		if data, ok := obj["data"]; ok {
			return data, nil
		}
	}
	return payload, nil
}

// applyDefaults merges the webhook's configured overrides over the extracted
// fields. Defaults win unconditionally, including priority 0.
func applyDefaults(fields extract.Fields, hook domain.Webhook) extract.Fields {
	if hook.DefaultStatus != nil {
		fields.Status = *hook.DefaultStatus
	}
	if hook.DefaultPriority != nil {
		p := *hook.DefaultPriority
		fields.Priority = &p
	}
	if fields.Status == "" || !config.ValidStatus(fields.Status) {
		fields.Status = "todo"
	}
	return fields
}

func priorityOrDefault(p *int) int {
	if p == nil {
		return 4
	}
	return *p
}

// resolveColumn picks the column whose status matches the target, falling
// back to the lowest-position column. Zero columns is a structural fault.
func (e *Engine) resolveColumn(ctx context.Context, workspaceID, status string) (domain.Column, error) {
	columns, err := e.Repo.ListColumns(ctx, workspaceID)
	if err != nil {
		return domain.Column{}, fmt.Errorf("list columns: %w", err)
	}
	if len(columns) == 0 {
		return domain.Column{}, ErrNoColumns
	}
	for _, c := range columns {
		if c.Status == status {
			return c, nil
		}
	}
	return columns[0], nil
}

// resolveLabels matches extracted label names case-insensitively against the
// workspace's labels (unmatched names are dropped), then unions in the
// webhook's default label ids. Malformed default JSON counts as empty.
func (e *Engine) resolveLabels(ctx context.Context, workspaceID string, names []string, defaultIDs *string) ([]string, error) {
	labels, err := e.Repo.ListLabels(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	byName := make(map[string]string, len(labels))
	byID := make(map[string]bool, len(labels))
	for _, l := range labels {
		byName[strings.ToLower(l.Name)] = l.ID
		byID[l.ID] = true
	}

	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, name := range names {
		add(byName[strings.ToLower(strings.TrimSpace(name))])
	}
	if defaultIDs != nil && *defaultIDs != "" {
		var defaults []string
		if err := json.Unmarshal([]byte(*defaultIDs), &defaults); err == nil {
			for _, id := range defaults {
				if byID[id] {
					add(id)
				}
			}
		}
	}
	return ids, nil
}
