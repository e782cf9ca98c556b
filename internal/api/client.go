package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the daemon listening at bind, which may be a
// bare host:port or a full URL.
func NewClient(bind string) *Client {
	base := strings.TrimSpace(bind)
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// JobFilter narrows a job listing request.
type JobFilter struct {
	Kind   string
	State  string
	ShowID int64
	Limit  int
	Offset int
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var status DaemonStatus
	if err := c.get(ctx, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Jobs lists analysis jobs matching the filter, newest first.
func (c *Client) Jobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	query := url.Values{}
	if filter.Kind != "" {
		query.Set("kind", filter.Kind)
	}
	if filter.State != "" {
		query.Set("state", filter.State)
	}
	if filter.ShowID != 0 {
		query.Set("show", strconv.FormatInt(filter.ShowID, 10))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		query.Set("offset", strconv.Itoa(filter.Offset))
	}
	var response JobListResponse
	if err := c.get(ctx, "/api/jobs", query, &response); err != nil {
		return nil, err
	}
	return response.Jobs, nil
}

// Segments fetches the show's consensus segments.
func (c *Client) Segments(ctx context.Context, showID int64) (*SegmentListResponse, error) {
	var response SegmentListResponse
	path := fmt.Sprintf("/api/shows/%d/segments", showID)
	if err := c.get(ctx, path, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Scan asks the daemon to reload the catalog snapshot immediately.
func (c *Client) Scan(ctx context.Context) error {
	var response ScanResponse
	return c.do(ctx, http.MethodPost, "/api/scan", nil, &response)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("daemon API address is not configured")
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s: %s", resp.Status, readAPIError(resp.Body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readAPIError(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unreadable error body"
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
