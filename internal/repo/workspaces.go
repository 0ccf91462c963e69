package repo

import (
	"context"
	"database/sql"

	"boardflow/internal/domain"
)

func (r Repo) InsertWorkspace(ctx context.Context, tx *sql.Tx, w domain.Workspace) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workspaces(id,slug,name,identifier,issue_counter,created_at) VALUES (?,?,?,?,?,?)`,
		w.ID, w.Slug, w.Name, w.Identifier, w.IssueCounter, w.CreatedAt)
	return err
}

func scanWorkspace(row *sql.Row) (domain.Workspace, error) {
	var w domain.Workspace
	err := row.Scan(&w.ID, &w.Slug, &w.Name, &w.Identifier, &w.IssueCounter, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) GetWorkspace(ctx context.Context, id string) (domain.Workspace, error) {
	return scanWorkspace(r.DB.QueryRowContext(ctx,
		`SELECT id,slug,name,identifier,issue_counter,created_at FROM workspaces WHERE id=?`, id))
}

func (r Repo) GetWorkspaceBySlug(ctx context.Context, slug string) (domain.Workspace, error) {
	return scanWorkspace(r.DB.QueryRowContext(ctx,
		`SELECT id,slug,name,identifier,issue_counter,created_at FROM workspaces WHERE slug=?`, slug))
}

func (r Repo) ListWorkspaces(ctx context.Context) ([]domain.Workspace, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,slug,name,identifier,issue_counter,created_at FROM workspaces ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Workspace
	for rows.Next() {
		var w domain.Workspace
		if err := rows.Scan(&w.ID, &w.Slug, &w.Name, &w.Identifier, &w.IssueCounter, &w.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (r Repo) InsertColumn(ctx context.Context, tx *sql.Tx, c domain.Column) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO columns(id,workspace_id,name,status,position,created_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.WorkspaceID, c.Name, c.Status, c.Position, c.CreatedAt)
	return err
}

// ListColumns returns a workspace's columns ordered by position ascending.
func (r Repo) ListColumns(ctx context.Context, workspaceID string) ([]domain.Column, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,workspace_id,name,status,position,created_at FROM columns WHERE workspace_id=? ORDER BY position ASC, id ASC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Column
	for rows.Next() {
		var c domain.Column
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Status, &c.Position, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
