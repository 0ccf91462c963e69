package migrate

import (
	"testing"

	"boardflow/internal/db"
)

func TestMigrateFreshDatabase(t *testing.T) {
	conn, err := db.Open(db.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Re-running is a no-op.
	if err := Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var version int
	if err := conn.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version); err != nil {
		t.Fatalf("read schema_version: %v", err)
	}
	if version < 1 {
		t.Fatalf("version = %d", version)
	}

	for _, table := range []string{
		"workspaces", "columns", "issues", "labels", "issue_labels",
		"webhooks", "activities", "api_keys", "token_usage",
	} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
