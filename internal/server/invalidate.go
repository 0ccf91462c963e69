package server

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LogInvalidator only records invalidations. Used when no frontend
// revalidation endpoint is configured.
type LogInvalidator struct {
	Logger *log.Logger
}

func (l LogInvalidator) Invalidate(path string) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("invalidate: %s", path)
}

// HTTPInvalidator posts invalidated paths to an external revalidation
// endpoint. Delivery is fire-and-forget; failures are logged only.
type HTTPInvalidator struct {
	Endpoint string
	Secret   string
	Logger   *log.Logger
	Client   *http.Client
}

func (h HTTPInvalidator) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.Default()
}

func (h HTTPInvalidator) Invalidate(path string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		target := strings.TrimRight(h.Endpoint, "/") + "?path=" + url.QueryEscape(path)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
		if err != nil {
			h.logger().Printf("invalidate: build request for %s: %v", path, err)
			return
		}
		if h.Secret != "" {
			req.Header.Set("X-Revalidate-Secret", h.Secret)
		}
		client := h.Client
		if client == nil {
			client = &http.Client{Timeout: 5 * time.Second}
		}
		res, err := client.Do(req)
		if err != nil {
			h.logger().Printf("invalidate: deliver %s: %v", path, err)
			return
		}
		res.Body.Close()
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			h.logger().Printf("invalidate: deliver %s: status %d", path, res.StatusCode)
		}
	}()
}
