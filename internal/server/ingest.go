package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"boardflow/internal/domain"
	"boardflow/internal/engine"
)

const maxIngestBody = 1 << 20

// ingestIssue is the issue view returned to webhook senders.
type ingestIssue struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Priority   int    `json:"priority"`
}

type ingestResponse struct {
	Success bool        `json:"success"`
	Issue   ingestIssue `json:"issue"`
}

// registerIngest mounts the webhook delivery endpoint. It stays outside
// huma: the body is arbitrary JSON and the error envelope is a flat
// {"error": "..."} object.
func registerIngest(router chi.Router, e *engine.Engine, limiter *RateLimiter, logger *log.Logger) {
	router.Post("/api/webhooks/{workspaceSlug}/{webhookSlug}", func(w http.ResponseWriter, r *http.Request) {
		key := apiKeyCredential(r)
		principal, err := authenticateAPIKey(r.Context(), e.Repo, key)
		if err != nil {
			writeIngestError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		if ok, wait := limiter.Allow(principal.APIKeyID); !ok {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(wait.Seconds()))))
			writeIngestError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
		if err != nil {
			writeIngestError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		issue, err := e.IngestWebhook(r.Context(), engine.IngestRequest{
			WorkspaceSlug:   chi.URLParam(r, "workspaceSlug"),
			WebhookSlug:     chi.URLParam(r, "webhookSlug"),
			AuthWorkspaceID: principal.WorkspaceID,
			Body:            body,
		})
		if err != nil {
			status, msg := ingestErrorStatus(err)
			if status == http.StatusInternalServerError {
				logger.Printf("ingest: %s/%s: %v", chi.URLParam(r, "workspaceSlug"), chi.URLParam(r, "webhookSlug"), err)
			}
			writeIngestError(w, status, msg)
			return
		}

		writeJSON(w, http.StatusOK, ingestResponse{Success: true, Issue: ingestIssueView(issue)})
	})
}

func apiKeyCredential(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	return ""
}

func ingestErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrInvalidJSON):
		return http.StatusBadRequest, "Invalid JSON body"
	case errors.Is(err, engine.ErrWorkspaceMismatch):
		return http.StatusForbidden, "API key does not have access to this workspace"
	case errors.Is(err, engine.ErrWorkspaceNotFound):
		return http.StatusNotFound, "Workspace not found"
	case errors.Is(err, engine.ErrWebhookNotFound):
		return http.StatusNotFound, "Webhook not found or disabled"
	case errors.Is(err, engine.ErrNoColumns):
		return http.StatusInternalServerError, "Workspace has no columns"
	default:
		return http.StatusInternalServerError, "Failed to process webhook data"
	}
}

func ingestIssueView(i domain.Issue) ingestIssue {
	return ingestIssue{
		ID:         i.ID,
		Identifier: i.Identifier,
		Title:      i.Title,
		Status:     i.Status,
		Priority:   i.Priority,
	}
}

func writeIngestError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
