package repo

import (
	"context"
	"time"

	"boardflow/internal/domain"
)

// RecordTokenUsage appends one token-usage accounting row.
func (r Repo) RecordTokenUsage(ctx context.Context, u domain.TokenUsage) error {
	if u.TS == "" {
		u.TS = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO token_usage(workspace_id,model,source,input_tokens,output_tokens,ts) VALUES (?,?,?,?,?,?)`,
		u.WorkspaceID, u.Model, u.Source, u.InputTokens, u.OutputTokens, u.TS)
	return err
}

// SumTokenUsage totals recorded tokens for a workspace.
func (r Repo) SumTokenUsage(ctx context.Context, workspaceID string) (input, output int, err error) {
	err = r.DB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(input_tokens),0), COALESCE(SUM(output_tokens),0) FROM token_usage WHERE workspace_id=?`,
		workspaceID).Scan(&input, &output)
	return input, output, err
}
