// Package datastore talks to the external REST application store.
package datastore

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

	"golang.org/x/sync/singleflight"

	"github.com/visadesk/visadesk/internal/applications"
)

// Client wraps interactions with the data store API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	lists      singleflight.Group
}

// NewClient constructs a new client.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StatusError reports an unexpected response status.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("datastore: %s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Ping checks if the data store is available.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// ListApplications returns every application. Concurrent callers share one
// in-flight request.
func (c *Client) ListApplications(ctx context.Context) ([]applications.Application, error) {
	ch := c.lists.DoChan("applications", func() (interface{}, error) {
		var out []applications.Application
		if err := c.do(context.WithoutCancel(ctx), http.MethodGet, "/applications", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.([]applications.Application)
		out := make([]applications.Application, len(shared))
		copy(out, shared)
		return out, nil
	}
}

// GetApplication fetches one application.
func (c *Client) GetApplication(ctx context.Context, id string) (applications.Application, error) {
	var app applications.Application
	err := c.do(ctx, http.MethodGet, "/applications/"+url.PathEscape(id), nil, &app)
	return app, err
}

// CreateApplication stores a new application and returns the stored record.
func (c *Client) CreateApplication(ctx context.Context, app applications.Application) (applications.Application, error) {
	var created applications.Application
	err := c.do(ctx, http.MethodPost, "/applications", app, &created)
	return created, err
}

// UpdateApplication replaces an application and returns the stored record.
func (c *Client) UpdateApplication(ctx context.Context, app applications.Application) (applications.Application, error) {
	var updated applications.Application
	err := c.do(ctx, http.MethodPut, "/applications/"+url.PathEscape(app.ID), app, &updated)
	return updated, err
}

// DeleteApplication soft-deletes an application.
func (c *Client) DeleteApplication(ctx context.Context, id string, at time.Time) error {
	body := map[string]time.Time{"deletedAt": at}
	return c.do(ctx, http.MethodPatch, "/applications/"+url.PathEscape(id), body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("datastore: %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return applications.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("datastore: decode %s %s: %w", method, path, err)
	}
	return nil
}
