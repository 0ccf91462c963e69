package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// TypeIssueCreated tags the audit record written for every ingested issue.
const TypeIssueCreated = "issue_created"

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Payload map[string]any

// Append writes one audit row. It is a standalone round trip; callers decide
// whether a failure after the issue row landed is fatal.
func (w Writer) Append(ctx context.Context, actType, workspaceID, issueID, actorID string, payload Payload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal activity payload: %w", err)
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO activities(workspace_id,issue_id,type,actor_id,payload_json,ts) VALUES (?,?,?,?,?,?)`,
		workspaceID, issueID, actType, actorID, string(data), ts)
	return err
}
