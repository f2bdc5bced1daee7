// Package remote provides the HTTP client for the pharmsync remote store.
//
// The client is a thin typed wrapper over the per-table REST API: one
// logical operation per call, no retries, no batching. Batching and retry
// policy belong to the sync coordinator.
//
// Every call attaches a bearer token obtained from the Token function,
// allowing the caller to plug in static tokens or refreshing sessions.
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

	"github.com/openpharm/pharmsync/internal/schema"
)

// Client talks to the remote store's REST API.
type Client struct {
	// BaseURL is the remote store root, e.g. "https://sync.example.com".
	BaseURL string

	// Token returns the bearer token attached to each request.
	// A nil Token sends unauthenticated requests.
	Token func(ctx context.Context) (string, error)

	// HTTP is the underlying client. Defaults to a client with a
	// 30 second timeout when nil.
	HTTP *http.Client
}

// New creates a remote store client for the given base URL.
func New(baseURL string, token func(ctx context.Context) (string, error)) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// StaticToken returns a Token function that always yields the given token.
func StaticToken(token string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return token, nil
	}
}

// Apply performs the remote mutation described by a queue entry.
//
// insert maps to POST /api/v1/{table}, update to PUT /api/v1/{table}/{id}
// and delete to DELETE /api/v1/{table}/{id}. The entry's data snapshot is
// sent as the request body for insert and update.
//
// Failures are classified as ErrUnavailable (network error or 5xx) or
// ErrRejected (4xx); the caller must not mark the entry synced on either.
func (c *Client) Apply(ctx context.Context, entry *schema.QueueEntry) error {
	var method, path string
	var body io.Reader

	switch entry.Operation {
	case schema.OpInsert:
		method = http.MethodPost
		path = fmt.Sprintf("/api/v1/%s", entry.TableName)
		body = bytes.NewReader(entry.Data)
	case schema.OpUpdate:
		method = http.MethodPut
		path = fmt.Sprintf("/api/v1/%s/%s", entry.TableName, url.PathEscape(entry.RecordID))
		body = bytes.NewReader(entry.Data)
	case schema.OpDelete:
		method = http.MethodDelete
		path = fmt.Sprintf("/api/v1/%s/%s", entry.TableName, url.PathEscape(entry.RecordID))
	default:
		return fmt.Errorf("unknown queue operation %q", entry.Operation)
	}

	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return classifyStatus(resp)
}

// ChangedSince returns all remote records in a table with
// updated_at strictly after the given timestamp. Used only in the pull
// direction. A zero timestamp fetches the whole table.
func (c *Client) ChangedSince(ctx context.Context, table string, since time.Time) ([]schema.Record, error) {
	path := fmt.Sprintf("/api/v1/%s", table)
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.Format(time.RFC3339Nano))
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: malformed response for %s: %v", ErrUnavailable, table, err)
	}

	records := make([]schema.Record, 0, len(raw))
	for _, data := range raw {
		rec, err := schema.Decode(table, data)
		if err != nil {
			return nil, fmt.Errorf("bad %s record from remote: %w", table, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Ping probes remote reachability with a HEAD request to /healthz.
// Any transport error or non-2xx response counts as unreachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodHead, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: health probe returned %s", ErrUnavailable, resp.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != nil {
		token, err := c.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain auth token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// classifyStatus maps an HTTP response to the remote error taxonomy.
// 2xx is success, 4xx is a rejection, everything else is unavailability.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode <= 499:
		return fmt.Errorf("%w: %s", ErrRejected, responseDetail(resp))
	default:
		return fmt.Errorf("%w: %s", ErrUnavailable, responseDetail(resp))
	}
}

func responseDetail(resp *http.Response) string {
	// Bounded read; error bodies are small JSON blobs.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil || len(data) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, bytes.TrimSpace(data))
}
