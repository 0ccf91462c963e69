package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"boardflow/internal/activity"
	"boardflow/internal/config"
	"boardflow/internal/domain"
	"boardflow/internal/extract"
	"boardflow/internal/repo"
)

// Extractor produces candidate issue fields from an opaque payload.
type Extractor interface {
	Extract(ctx context.Context, workspaceID, prompt string, payload any) (extract.Result, error)
}

// Invalidator is notified when a board view's backing data changed.
// Implementations must not block the caller for long; delivery is
// best-effort.
type Invalidator interface {
	Invalidate(path string)
}

// Engine owns all write paths. Handlers and the CLI never touch the
// repo directly for mutations.
type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Activities activity.Writer
	Extractor  Extractor
	Invalidate Invalidator // optional
	Config     *config.Config
	Logger     *log.Logger // optional
	Now        func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e *Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

var slugDisallowed = func(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
}

func validSlug(s string) bool {
	return s != "" && strings.IndexFunc(s, slugDisallowed) < 0
}

// CreateWorkspace inserts the workspace and seeds its columns from the
// configured board layout, in one transaction.
func (e *Engine) CreateWorkspace(ctx context.Context, slug, name, identifier string) (domain.Workspace, error) {
	if !validSlug(slug) {
		return domain.Workspace{}, fmt.Errorf("invalid slug %q: use lowercase letters, digits and dashes", slug)
	}
	identifier = strings.ToUpper(strings.TrimSpace(identifier))
	if identifier == "" {
		return domain.Workspace{}, errors.New("identifier prefix required")
	}
	if name == "" {
		name = slug
	}
	w := domain.Workspace{
		ID:         uuid.NewString(),
		Slug:       slug,
		Name:       name,
		Identifier: identifier,
		CreatedAt:  e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Workspace{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertWorkspace(ctx, tx, w); err != nil {
		return domain.Workspace{}, fmt.Errorf("insert workspace: %w", err)
	}
	for i, col := range e.Config.Board.Columns {
		c := domain.Column{
			ID:          uuid.NewString(),
			WorkspaceID: w.ID,
			Name:        col.Name,
			Status:      col.Status,
			Position:    i,
			CreatedAt:   w.CreatedAt,
		}
		if err := e.Repo.InsertColumn(ctx, tx, c); err != nil {
			return domain.Workspace{}, fmt.Errorf("seed column %s: %w", col.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Workspace{}, err
	}
	return w, nil
}

// CreateWebhookParams carries the optional defaults that pin fields
// regardless of what extraction infers.
type CreateWebhookParams struct {
	WorkspaceID     string
	Slug            string
	Name            string
	Prompt          string
	DefaultStatus   *string
	DefaultPriority *int
	DefaultLabelIDs *string
}

func (e *Engine) CreateWebhook(ctx context.Context, p CreateWebhookParams) (domain.Webhook, error) {
	if !validSlug(p.Slug) {
		return domain.Webhook{}, fmt.Errorf("invalid slug %q: use lowercase letters, digits and dashes", p.Slug)
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return domain.Webhook{}, errors.New("prompt required")
	}
	if p.DefaultStatus != nil && !config.ValidStatus(*p.DefaultStatus) {
		return domain.Webhook{}, fmt.Errorf("unknown default status %q", *p.DefaultStatus)
	}
	if p.DefaultPriority != nil && (*p.DefaultPriority < 0 || *p.DefaultPriority > 4) {
		return domain.Webhook{}, fmt.Errorf("default priority %d out of range 0-4", *p.DefaultPriority)
	}
	if _, err := e.Repo.GetWorkspace(ctx, p.WorkspaceID); err != nil {
		return domain.Webhook{}, err
	}
	name := p.Name
	if name == "" {
		name = p.Slug
	}
	w := domain.Webhook{
		ID:              uuid.NewString(),
		WorkspaceID:     p.WorkspaceID,
		Slug:            p.Slug,
		Name:            name,
		Prompt:          p.Prompt,
		IsActive:        true,
		DefaultStatus:   p.DefaultStatus,
		DefaultPriority: p.DefaultPriority,
		DefaultLabelIDs: p.DefaultLabelIDs,
		CreatedAt:       e.nowRFC3339(),
	}
	if err := e.Repo.InsertWebhook(ctx, w); err != nil {
		return domain.Webhook{}, err
	}
	return w, nil
}

func (e *Engine) CreateLabel(ctx context.Context, workspaceID, name, color string) (domain.Label, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Label{}, errors.New("name required")
	}
	if _, err := e.Repo.GetWorkspace(ctx, workspaceID); err != nil {
		return domain.Label{}, err
	}
	l := domain.Label{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        name,
		Color:       color,
		CreatedAt:   e.nowRFC3339(),
	}
	if err := e.Repo.InsertLabel(ctx, l); err != nil {
		return domain.Label{}, err
	}
	return l, nil
}

// CreateAPIKey mints a new key, stores only its hash, and returns the
// plaintext once. It cannot be recovered later.
func (e *Engine) CreateAPIKey(ctx context.Context, workspaceID, name string) (domain.APIKey, string, error) {
	if _, err := e.Repo.GetWorkspace(ctx, workspaceID); err != nil {
		return domain.APIKey{}, "", err
	}
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return domain.APIKey{}, "", err
	}
	plaintext := "bf_" + hex.EncodeToString(raw)
	key := domain.APIKey{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Name:        name,
		KeyHash:     repo.HashAPIKey(plaintext),
		CreatedAt:   e.nowRFC3339(),
	}
	if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plaintext, nil
}
