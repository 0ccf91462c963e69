package repo

import (
	"context"

	"boardflow/internal/domain"
)

// ListIssueActivities returns audit rows for an issue, newest first.
func (r Repo) ListIssueActivities(ctx context.Context, issueID string) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,workspace_id,issue_id,type,actor_id,payload_json,ts FROM activities WHERE issue_id=? ORDER BY id DESC`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.IssueID, &a.Type, &a.ActorID, &a.Payload, &a.TS); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
