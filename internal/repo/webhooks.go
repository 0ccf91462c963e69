package repo

import (
	"context"
	"database/sql"
	"errors"

	"boardflow/internal/domain"
)

func (r Repo) InsertWebhook(ctx context.Context, w domain.Webhook) error {
	if w.ID == "" {
		return errors.New("id required")
	}
	if w.Prompt == "" {
		return errors.New("prompt required")
	}
	active := 0
	if w.IsActive {
		active = 1
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO webhooks(id,workspace_id,slug,name,prompt,is_active,default_status,default_priority,default_label_ids,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.WorkspaceID, w.Slug, w.Name, w.Prompt, active,
		nullableStringPtr(w.DefaultStatus), nullableIntPtr(w.DefaultPriority), nullableStringPtr(w.DefaultLabelIDs), w.CreatedAt)
	return err
}

func scanWebhookRow(scan func(dest ...any) error) (domain.Webhook, error) {
	var w domain.Webhook
	var active int
	var defaultStatus, defaultLabelIDs sql.NullString
	var defaultPriority sql.NullInt64
	err := scan(&w.ID, &w.WorkspaceID, &w.Slug, &w.Name, &w.Prompt, &active,
		&defaultStatus, &defaultPriority, &defaultLabelIDs, &w.CreatedAt)
	if err != nil {
		return w, err
	}
	w.IsActive = active != 0
	if defaultStatus.Valid {
		w.DefaultStatus = &defaultStatus.String
	}
	if defaultPriority.Valid {
		p := int(defaultPriority.Int64)
		w.DefaultPriority = &p
	}
	if defaultLabelIDs.Valid {
		w.DefaultLabelIDs = &defaultLabelIDs.String
	}
	return w, nil
}

const webhookColumns = `id,workspace_id,slug,name,prompt,is_active,default_status,default_priority,default_label_ids,created_at`

// GetWebhookBySlug looks a webhook up within one workspace.
func (r Repo) GetWebhookBySlug(ctx context.Context, workspaceID, slug string) (domain.Webhook, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE workspace_id=? AND slug=?`, workspaceID, slug)
	w, err := scanWebhookRow(row.Scan)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) ListWebhooks(ctx context.Context, workspaceID string) ([]domain.Webhook, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE workspace_id=? ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Webhook
	for rows.Next() {
		w, err := scanWebhookRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

// SetWebhookActive toggles delivery for a webhook.
func (r Repo) SetWebhookActive(ctx context.Context, id string, active bool) error {
	v := 0
	if active {
		v = 1
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE webhooks SET is_active=? WHERE id=?`, v, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
