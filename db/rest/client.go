// Package rest is the HTTP client side of the remote snapshot store.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	dbt "tracker/db/db"
)

var ErrUnexpectedStatus = errors.New("unexpected status")

// Client talks to the snapshot server and implements dbt.SnapshotStore.
type Client struct {
	BaseURL string
	Scope   string
	HTTP    *http.Client
}

// New creates a client. A zero timeout falls back to 5s.
func New(baseURL, scope string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Scope:   scope,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// HealthCheck hits the /health endpoint to verify server reachability.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if _, err := c.do(ctx, http.MethodGet, PathHealth, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Fetch returns nil when the server has no snapshot (204) or sends malformed JSON.
func (c *Client) Fetch(ctx context.Context) (*dbt.Snapshot, error) {
	var snapshot dbt.Snapshot
	status, err := c.do(ctx, http.MethodGet, c.snapshotPath(), nil, &snapshot, http.StatusOK, http.StatusNoContent)
	if err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			log.Printf("[storage] remote snapshot is malformed, treating as absent: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &snapshot, nil
}

// Save returns a *dbt.ConflictError when the server answers 409.
func (c *Client) Save(ctx context.Context, snapshot dbt.Snapshot, opts dbt.SaveOptions) (dbt.Snapshot, error) {
	body := SaveRequest{Snapshot: snapshot, BaseUpdatedAt: opts.BaseUpdatedAt, Force: opts.Force}
	var resp SaveResponse
	status, err := c.do(ctx, http.MethodPut, c.snapshotPath(), body, &resp, http.StatusOK, http.StatusConflict)
	if err != nil {
		return dbt.Snapshot{}, err
	}
	if status == http.StatusConflict {
		if resp.Conflict == nil {
			return dbt.Snapshot{}, fmt.Errorf("%w: 409 without conflict snapshot", ErrUnexpectedStatus)
		}
		return dbt.Snapshot{}, &dbt.ConflictError{Existing: *resp.Conflict}
	}
	if resp.Snapshot == nil {
		return snapshot, nil
	}
	return *resp.Snapshot, nil
}

func (c *Client) snapshotPath() string {
	if c.Scope == "" {
		return PathSnapshot
	}
	return PathSnapshot + "?scope=" + url.QueryEscape(c.Scope)
}

// do executes a request and decodes the body into result for any accepted status.
func (c *Client) do(ctx context.Context, method, path string, body, result any, accepted ...int) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	ok := false
	for _, status := range accepted {
		if resp.StatusCode == status {
			ok = true
			break
		}
	}
	if !ok {
		var apiErr APIError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			return resp.StatusCode, fmt.Errorf("%w %d: %w", ErrUnexpectedStatus, resp.StatusCode, &apiErr)
		}
		return resp.StatusCode, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
