// Package transport talks to the inspection backend: the REST endpoints used
// for bulk fetches and admin deletes, and the live WebSocket update channel.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wheelwatch/internal/report"
)

var (
	ErrUnauthorized = errors.New("backend rejected credentials")
	ErrForbidden    = errors.New("operation not permitted for this account")
	ErrNotFound     = errors.New("report not found on backend")
)

// maxResponseBytes bounds a bulk fetch body.
const maxResponseBytes = 64 << 20

// Client is an HTTP client for the backend REST API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewClient creates a Client with the given request timeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// FetchReports retrieves the full report list.
func (c *Client) FetchReports(ctx context.Context) ([]report.InspectionReport, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/reports")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching reports: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, fmt.Errorf("fetching reports: %w", err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading reports: %w", err)
	}
	reports, err := report.DecodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("decoding reports: %w", err)
	}
	return reports, nil
}

// DeleteReport removes a report on the backend. The deletion reaches local
// state through the live channel like any other event.
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("deleting report: empty id")
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/reports/"+url.PathEscape(id))
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("deleting report %s: %w", id, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if err := statusError(resp); err != nil {
		return fmt.Errorf("deleting report %s: %w", id, err)
	}
	return nil
}

// ImageURL resolves an image path from a report against the base URL.
// Absolute URLs are returned unchanged; an empty path yields "".
func (c *Client) ImageURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.BaseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("backend base_url is not set")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
}
