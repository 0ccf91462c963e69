package boardflowsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Boardflow delivery client. It speaks to the webhook
// ingest endpoint with an API key and, optionally, to the board CRUD API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: 30 * time.Second,
	}
}

// Issue is the issue view the ingest endpoint returns.
type Issue struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Priority   int    `json:"priority"`
}

type deliverResponse struct {
	Success bool  `json:"success"`
	Issue   Issue `json:"issue"`
}

// APIError wraps non-2xx responses; Message carries the server's error field
// when present.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d error=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Deliver posts a payload to a webhook and returns the created issue. The
// payload may be any JSON-marshalable value; wrap it yourself in
// {"data": ...} if the top level collides with the envelope.
func (c *Client) Deliver(ctx context.Context, workspaceSlug, webhookSlug string, payload any) (Issue, error) {
	endpoint := fmt.Sprintf("api/webhooks/%s/%s",
		url.PathEscape(workspaceSlug), url.PathEscape(webhookSlug))
	var resp deliverResponse
	if err := c.do(ctx, http.MethodPost, endpoint, payload, &resp); err != nil {
		return Issue{}, err
	}
	return resp.Issue, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var parsed struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &parsed) == nil {
			apiErr.Message = parsed.Error
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
