// Package remote provides the authenticated REST client for the Focal
// sync backend.
//
// The remote service is a relational store with server-assigned primary
// keys. Every record round-trips the client's local id in a local_id
// column so upserts are keyed by the stable local identifier, and field
// mapping converts between internal and wire representations (session
// type enum, project intensity as a hex color channel).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// SessionRecord is the wire shape of a session row.
type SessionRecord struct {
	ID               string     `json:"id,omitempty"`
	LocalID          string     `json:"local_id"`
	Type             string     `json:"type"` // FOCUS, SHORT_BREAK, LONG_BREAK
	DurationSeconds  int        `json:"duration_seconds"`
	CompletedAt      time.Time  `json:"completed_at"`
	Task             string     `json:"task,omitempty"`
	ProjectID        string     `json:"project_id,omitempty"` // server-assigned project id
	OverflowSeconds  *int       `json:"overflow_seconds,omitempty"`
	EstimatedSeconds *int       `json:"estimated_seconds,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at,omitempty"`
	Deleted          bool       `json:"deleted,omitempty"`
}

// ProjectRecord is the wire shape of a project row.
type ProjectRecord struct {
	ID        string    `json:"id,omitempty"`
	LocalID   string    `json:"local_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"` // hex channel, e.g. "#B2"
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Deleted   bool      `json:"deleted,omitempty"`
}

// SettingsRecord is the wire shape of the settings document.
type SettingsRecord struct {
	Values    map[string]string `json:"values"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}

// StatusError reports a non-2xx response from the service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned status %d: %s", e.Code, e.Body)
}

// Client talks to the Focal sync backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client for the given base URL and bearer token.
// If httpClient is nil, http.DefaultClient is used; tests pass the client
// of an httptest server.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    httpClient,
	}
}

// ListSessions fetches sessions updated at or after since.
// A zero since fetches everything.
func (c *Client) ListSessions(ctx context.Context, since time.Time) ([]SessionRecord, error) {
	var out []SessionRecord
	if err := c.do(ctx, http.MethodGet, "/v1/sessions", sinceQuery(since), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return out, nil
}

// UpsertSession creates or updates a session keyed by its local_id.
// The returned record carries the server-assigned id.
func (c *Client) UpsertSession(ctx context.Context, rec SessionRecord) (SessionRecord, error) {
	var out SessionRecord
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", nil, rec, &out); err != nil {
		return SessionRecord{}, fmt.Errorf("failed to upsert session %s: %w", rec.LocalID, err)
	}
	return out, nil
}

// DeleteSession tombstones a session by server id.
// A 404 is treated as success (idempotent).
func (c *Client) DeleteSession(ctx context.Context, serverID string) error {
	err := c.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(serverID), nil, nil, nil)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", serverID, err)
	}
	return nil
}

// ListProjects fetches projects updated at or after since.
func (c *Client) ListProjects(ctx context.Context, since time.Time) ([]ProjectRecord, error) {
	var out []ProjectRecord
	if err := c.do(ctx, http.MethodGet, "/v1/projects", sinceQuery(since), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return out, nil
}

// UpsertProject creates or updates a project keyed by its local_id.
func (c *Client) UpsertProject(ctx context.Context, rec ProjectRecord) (ProjectRecord, error) {
	var out ProjectRecord
	if err := c.do(ctx, http.MethodPost, "/v1/projects", nil, rec, &out); err != nil {
		return ProjectRecord{}, fmt.Errorf("failed to upsert project %s: %w", rec.LocalID, err)
	}
	return out, nil
}

// DeleteProject tombstones a project by server id.
// A 404 is treated as success (idempotent).
func (c *Client) DeleteProject(ctx context.Context, serverID string) error {
	err := c.do(ctx, http.MethodDelete, "/v1/projects/"+url.PathEscape(serverID), nil, nil, nil)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", serverID, err)
	}
	return nil
}

// GetSettings fetches the remote settings document.
// Returns (nil, nil) when the server has no document yet.
func (c *Client) GetSettings(ctx context.Context) (*SettingsRecord, error) {
	var out SettingsRecord
	err := c.do(ctx, http.MethodGet, "/v1/settings", nil, nil, &out)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &out, nil
}

// PutSettings replaces the remote settings document as a whole.
func (c *Client) PutSettings(ctx context.Context, rec SettingsRecord) (SettingsRecord, error) {
	var out SettingsRecord
	if err := c.do(ctx, http.MethodPut, "/v1/settings", nil, rec, &out); err != nil {
		return SettingsRecord{}, fmt.Errorf("failed to put settings: %w", err)
	}
	return out, nil
}

// do performs a JSON request against the service.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func sinceQuery(since time.Time) url.Values {
	if since.IsZero() {
		return nil
	}
	return url.Values{"updated_since": {since.UTC().Format(time.RFC3339Nano)}}
}

func isNotFound(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == http.StatusNotFound
}
