package server

import (
	"boardflow/internal/domain"
)

// Request payloads

type CreateWorkspaceRequest struct {
	Slug       string `json:"slug"`
	Name       string `json:"name,omitempty"`
	Identifier string `json:"identifier"`
}

type CreateWebhookRequest struct {
	Slug            string   `json:"slug"`
	Name            string   `json:"name,omitempty"`
	Prompt          string   `json:"prompt"`
	DefaultStatus   *string  `json:"default_status,omitempty" enum:"backlog,todo,in_progress,done,canceled"`
	DefaultPriority *int     `json:"default_priority,omitempty" minimum:"0" maximum:"4"`
	DefaultLabelIDs []string `json:"default_label_ids,omitempty"`
}

type SetWebhookActiveRequest struct {
	IsActive bool `json:"is_active"`
}

type CreateLabelRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

// Response payloads

type WorkspaceResponse struct {
	ID         string `json:"id"`
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	CreatedAt  string `json:"created_at"`
}

type ColumnResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Position int    `json:"position"`
}

type WebhookResponse struct {
	ID              string  `json:"id"`
	WorkspaceID     string  `json:"workspace_id"`
	Slug            string  `json:"slug"`
	Name            string  `json:"name"`
	Prompt          string  `json:"prompt"`
	IsActive        bool    `json:"is_active"`
	DefaultStatus   *string `json:"default_status,omitempty"`
	DefaultPriority *int    `json:"default_priority,omitempty"`
	DefaultLabelIDs *string `json:"default_label_ids,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

type LabelResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	CreatedAt string `json:"created_at"`
}

type IssueResponse struct {
	ID          string   `json:"id"`
	WorkspaceID string   `json:"workspace_id"`
	ColumnID    string   `json:"column_id"`
	Identifier  string   `json:"identifier"`
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    int      `json:"priority"`
	Position    int      `json:"position"`
	LabelIDs    []string `json:"label_ids,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

type ActivityResponse struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	ActorID string `json:"actor_id"`
	Payload string `json:"payload_json"`
	TS      string `json:"ts"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	// Key is only present on creation; it cannot be recovered later.
	Key string `json:"key,omitempty"`
}

type UsageResponse struct {
	WorkspaceID  string `json:"workspace_id"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

func workspaceResponse(w domain.Workspace) WorkspaceResponse {
	return WorkspaceResponse{
		ID:         w.ID,
		Slug:       w.Slug,
		Name:       w.Name,
		Identifier: w.Identifier,
		CreatedAt:  w.CreatedAt,
	}
}

func columnResponse(c domain.Column) ColumnResponse {
	return ColumnResponse{ID: c.ID, Name: c.Name, Status: c.Status, Position: c.Position}
}

func webhookResponse(w domain.Webhook) WebhookResponse {
	return WebhookResponse{
		ID:              w.ID,
		WorkspaceID:     w.WorkspaceID,
		Slug:            w.Slug,
		Name:            w.Name,
		Prompt:          w.Prompt,
		IsActive:        w.IsActive,
		DefaultStatus:   w.DefaultStatus,
		DefaultPriority: w.DefaultPriority,
		DefaultLabelIDs: w.DefaultLabelIDs,
		CreatedAt:       w.CreatedAt,
	}
}

func labelResponse(l domain.Label) LabelResponse {
	return LabelResponse{ID: l.ID, Name: l.Name, Color: l.Color, CreatedAt: l.CreatedAt}
}

func issueResponse(i domain.Issue, labelIDs []string) IssueResponse {
	return IssueResponse{
		ID:          i.ID,
		WorkspaceID: i.WorkspaceID,
		ColumnID:    i.ColumnID,
		Identifier:  i.Identifier,
		Title:       i.Title,
		Description: i.Description,
		Status:      i.Status,
		Priority:    i.Priority,
		Position:    i.Position,
		LabelIDs:    labelIDs,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

func activityResponse(a domain.Activity) ActivityResponse {
	return ActivityResponse{ID: a.ID, Type: a.Type, ActorID: a.ActorID, Payload: a.Payload, TS: a.TS}
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, Name: k.Name, CreatedAt: k.CreatedAt}
}
