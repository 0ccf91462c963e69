package domain

type Workspace struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	Identifier   string `json:"identifier"`
	IssueCounter int64  `json:"issue_counter"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Column struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Status      string `json:"status" enum:"backlog,todo,in_progress,done,canceled"`
	Position    int    `json:"position"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Issue struct {
	ID          string  `json:"id"`
	WorkspaceID string  `json:"workspace_id"`
	ColumnID    string  `json:"column_id"`
	ParentID    *string `json:"parent_id,omitempty"`
	Identifier  string  `json:"identifier"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status" enum:"backlog,todo,in_progress,done,canceled"`
	Priority    int     `json:"priority" minimum:"0" maximum:"4"`
	Position    int     `json:"position"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Label struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type IssueLabel struct {
	IssueID string `json:"issue_id"`
	LabelID string `json:"label_id"`
}

type Webhook struct {
	ID              string  `json:"id"`
	WorkspaceID     string  `json:"workspace_id"`
	Slug            string  `json:"slug"`
	Name            string  `json:"name"`
	Prompt          string  `json:"prompt"`
	IsActive        bool    `json:"is_active"`
	DefaultStatus   *string `json:"default_status,omitempty"`
	DefaultPriority *int    `json:"default_priority,omitempty"`
	DefaultLabelIDs *string `json:"default_label_ids,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
}

type Activity struct {
	ID          int64  `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	IssueID     string `json:"issue_id"`
	Type        string `json:"type"`
	ActorID     string `json:"actor_id"`
	Payload     string `json:"payload_json"`
	TS          string `json:"ts" format:"date-time"`
}

type APIKey struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name,omitempty"`
	KeyHash     string `json:"key_hash"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type TokenUsage struct {
	ID           int64  `json:"id"`
	WorkspaceID  string `json:"workspace_id"`
	Model        string `json:"model"`
	Source       string `json:"source"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TS           string `json:"ts" format:"date-time"`
}
