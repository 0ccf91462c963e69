package repo

import (
	"context"
	"database/sql"
	"strings"

	"boardflow/internal/domain"
)

func (r Repo) InsertIssue(ctx context.Context, i domain.Issue) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO issues(id,workspace_id,column_id,parent_id,identifier,title,description,status,priority,position,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		i.ID, i.WorkspaceID, i.ColumnID, nullableStringPtr(i.ParentID), i.Identifier, i.Title,
		nullableStringPtr(i.Description), i.Status, i.Priority, i.Position, i.CreatedAt, i.UpdatedAt)
	return err
}

func scanIssueRow(scan func(dest ...any) error) (domain.Issue, error) {
	var i domain.Issue
	var parentID, description sql.NullString
	err := scan(&i.ID, &i.WorkspaceID, &i.ColumnID, &parentID, &i.Identifier, &i.Title,
		&description, &i.Status, &i.Priority, &i.Position, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return i, err
	}
	if parentID.Valid {
		i.ParentID = &parentID.String
	}
	if description.Valid {
		i.Description = &description.String
	}
	return i, nil
}

const issueColumns = `id,workspace_id,column_id,parent_id,identifier,title,description,status,priority,position,created_at,updated_at`

func (r Repo) GetIssue(ctx context.Context, id string) (domain.Issue, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id=?`, id)
	i, err := scanIssueRow(row.Scan)
	if err == sql.ErrNoRows {
		return i, ErrNotFound
	}
	return i, err
}

func (r Repo) GetIssueByIdentifier(ctx context.Context, workspaceID, identifier string) (domain.Issue, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE workspace_id=? AND identifier=?`, workspaceID, identifier)
	i, err := scanIssueRow(row.Scan)
	if err == sql.ErrNoRows {
		return i, ErrNotFound
	}
	return i, err
}

type IssueFilters struct {
	WorkspaceID string
	ColumnID    string
	Status      string
	Limit       int
}

func (r Repo) ListIssues(ctx context.Context, f IssueFilters) ([]domain.Issue, error) {
	clauses := []string{"workspace_id=?"}
	args := []any{f.WorkspaceID}
	if f.ColumnID != "" {
		clauses = append(clauses, "column_id=?")
		args = append(args, f.ColumnID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + issueColumns + ` FROM issues WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Issue
	for rows.Next() {
		i, err := scanIssueRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, rows.Err()
}

// MaxIssuePosition returns the highest position among top-level issues in a
// column, or -1 when the column is empty.
func (r Repo) MaxIssuePosition(ctx context.Context, columnID string) (int, error) {
	var max int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) FROM issues WHERE column_id=? AND parent_id IS NULL`, columnID).Scan(&max)
	return max, err
}

// InsertIssueLabels writes the label associations for one issue in a batch.
func (r Repo) InsertIssueLabels(ctx context.Context, issueID string, labelIDs []string) error {
	if len(labelIDs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT OR IGNORE INTO issue_labels(issue_id,label_id) VALUES `)
	args := make([]any, 0, len(labelIDs)*2)
	for i, id := range labelIDs {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?)")
		args = append(args, issueID, id)
	}
	_, err := r.DB.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r Repo) ListIssueLabelIDs(ctx context.Context, issueID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT label_id FROM issue_labels WHERE issue_id=?`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
