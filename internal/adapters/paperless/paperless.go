// Package paperless is a read-only client for the paperless-ngx REST API.
// It resolves the project tag and pages through tagged documents, newest
// first, stopping once documents fall outside the sync lookback window.
package paperless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrTagNotFound means the configured project tag does not exist in the
// archive.
var ErrTagNotFound = errors.New("tag not found in paperless")

// AuthError reports a rejected token (401/403). Callers map it to a distinct
// failure class so misconfiguration is not mistaken for an outage.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("paperless rejected credentials (status %d)", e.StatusCode)
}

// APIError is any other non-2xx response from the archive.
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paperless request failed: %s returned status %d", e.URL, e.StatusCode)
}

// Document is one normalized archive document. Created stays as the raw
// timestamp string; consumers parse it defensively.
type Document struct {
	ID            int64   `json:"id"`
	Title         *string `json:"title"`
	Created       *string `json:"created"`
	Correspondent *string `json:"correspondent"`
	DocumentType  *string `json:"document_type"`
	Content       string  `json:"content"`
}

// Client talks to a paperless-ngx instance with token auth and retries on
// transient failures.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	logger  *slog.Logger
}

func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil

	return &Client{
		http:    rc.StandardClient(),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		logger:  logger,
	}
}

// Probe checks connectivity and auth with a minimal request, returning the
// round-trip latency.
func (c *Client) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var page tagPage
	if err := c.getJSON(ctx, "/api/tags/", url.Values{"page_size": {"1"}}, &page); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// GetTagIDByName pages through all tags looking for an exact name match.
func (c *Client) GetTagIDByName(ctx context.Context, name string) (int64, error) {
	path := "/api/tags/"
	params := url.Values{}
	for path != "" {
		var page tagPage
		if err := c.getJSON(ctx, path, params, &page); err != nil {
			return 0, err
		}
		params = nil
		for _, tag := range page.Results {
			if tag.Name == name {
				return tag.ID, nil
			}
		}
		path = c.toPath(page.Next)
	}
	return 0, fmt.Errorf("tag %q: %w", name, ErrTagNotFound)
}

// ListDocuments fetches all documents carrying the tag, newest first. The
// pagination stops early once a document's created timestamp falls before
// the cutoff; unparseable timestamps never terminate the scan.
func (c *Client) ListDocuments(ctx context.Context, tagID int64, cutoff time.Time, pageSize int) ([]Document, error) {
	params := url.Values{
		"tags__id":         {strconv.FormatInt(tagID, 10)},
		"page_size":        {strconv.Itoa(pageSize)},
		"ordering":         {"-created"},
		"truncate_content": {"false"},
	}

	var documents []Document
	path := "/api/documents/"
	for path != "" {
		var page docPage
		if err := c.getJSON(ctx, path, params, &page); err != nil {
			return nil, err
		}
		params = nil

		for _, item := range page.Results {
			if item.Created != nil {
				if created, err := parseTimestamp(*item.Created); err == nil && created.Before(cutoff) {
					return documents, nil
				}
			}
			documents = append(documents, item.normalize())
		}
		path = c.toPath(page.Next)
	}

	c.logger.Debug("fetched documents from paperless", "system", "paperless", "count", len(documents))
	return documents, nil
}

type tagPage struct {
	Next    *string `json:"next"`
	Results []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"results"`
}

type docPage struct {
	Next    *string   `json:"next"`
	Results []docItem `json:"results"`
}

// docItem keeps correspondent and document_type raw: the API returns either
// a numeric id or an expanded object depending on query flags.
type docItem struct {
	ID            int64           `json:"id"`
	Title         *string         `json:"title"`
	Created       *string         `json:"created"`
	Correspondent json.RawMessage `json:"correspondent"`
	DocumentType  json.RawMessage `json:"document_type"`
	Content       string          `json:"content"`
}

func (d docItem) normalize() Document {
	return Document{
		ID:            d.ID,
		Title:         d.Title,
		Created:       d.Created,
		Correspondent: refName(d.Correspondent),
		DocumentType:  refName(d.DocumentType),
		Content:       d.Content,
	}
}

// refName resolves an expanded {"name": ...} object, a plain string, or a
// numeric id to a display string.
func refName(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var obj struct {
		Name *string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != nil {
		return obj.Name
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		formatted := strconv.FormatInt(n, 10)
		return &formatted
	}
	return nil
}

// parseTimestamp accepts the RFC 3339 variants paperless emits, including a
// bare date.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseTimestamp is the exported defensive parser shared with the sync engine.
func ParseTimestamp(s string) (time.Time, error) {
	return parseTimestamp(s)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, target any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paperless request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		return &APIError{StatusCode: resp.StatusCode, URL: u}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding paperless response from %s: %w", u, err)
	}
	return nil
}

// toPath converts an absolute "next" link back into a request path so
// pagination stays on the configured base URL.
func (c *Client) toPath(next *string) string {
	if next == nil || *next == "" {
		return ""
	}
	if strings.HasPrefix(*next, c.baseURL) {
		return strings.TrimPrefix(*next, c.baseURL)
	}
	if u, err := url.Parse(*next); err == nil && u.Host != "" {
		path := u.Path
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
		return path
	}
	return *next
}
