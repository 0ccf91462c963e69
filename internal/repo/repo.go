package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// IncrementIssueCounter bumps the workspace counter and returns the new
// value in a single statement, so concurrent allocations cannot observe
// the same value.
func (r Repo) IncrementIssueCounter(ctx context.Context, workspaceID string) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		`UPDATE workspaces SET issue_counter = issue_counter + 1 WHERE id=? RETURNING issue_counter`,
		workspaceID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment issue counter: %w", err)
	}
	return n, nil
}
