package repo

import (
	"context"
	"database/sql"

	"boardflow/internal/domain"
)

func (r Repo) InsertLabel(ctx context.Context, l domain.Label) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO labels(id,workspace_id,name,color,created_at) VALUES (?,?,?,?,?)`,
		l.ID, l.WorkspaceID, l.Name, nullable(l.Color), l.CreatedAt)
	return err
}

func (r Repo) ListLabels(ctx context.Context, workspaceID string) ([]domain.Label, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,workspace_id,name,COALESCE(color,''),created_at FROM labels WHERE workspace_id=? ORDER BY name ASC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Label
	for rows.Next() {
		var l domain.Label
		if err := rows.Scan(&l.ID, &l.WorkspaceID, &l.Name, &l.Color, &l.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

func (r Repo) GetLabel(ctx context.Context, id string) (domain.Label, error) {
	var l domain.Label
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,workspace_id,name,COALESCE(color,''),created_at FROM labels WHERE id=?`, id).
		Scan(&l.ID, &l.WorkspaceID, &l.Name, &l.Color, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	return l, err
}
