// Package engine provides the public Go SDK for the FAQ engine API.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the public SDK client for the FAQ engine.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL string
	// UserID is sent as X-User-ID on every request.
	UserID     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a new FAQ engine client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8090"
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userID:     cfg.UserID,
		httpClient: httpClient,
	}, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("faq engine: %d %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("faq engine: %d %s", e.StatusCode, e.Message)
}

// IsUnavailable reports whether err means the FAQ corpus could not be read.
// Callers should show a retry message rather than escalate.
func IsUnavailable(err error) bool {
	return hasStatus(err, http.StatusServiceUnavailable)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict reports whether err is an illegal escalation transition.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// SearchRequest represents an FAQ search.
type SearchRequest struct {
	Query     string   `json:"query"`
	Models    []string `json:"models,omitempty"`
	Category  string   `json:"category,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// SearchResponse represents ranked search results. Escalate is true when
// nothing cleared the threshold.
type SearchResponse struct {
	Results   []FAQ   `json:"results"`
	Escalate  bool    `json:"escalate"`
	Threshold float64 `json:"threshold"`
	TimedOut  bool    `json:"timedOut,omitempty"`
}

// FAQ is one ranked FAQ.
type FAQ struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Category      string   `json:"category"`
	Models        []string `json:"models,omitempty"`
	Score         float64  `json:"score"`
	ModelAffinity bool     `json:"modelAffinity"`
}

// AskRequest represents a chat query.
type AskRequest struct {
	Query     string   `json:"query"`
	Models    []string `json:"models,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
}

// AskResponse is either an FAQ answer or an escalation notice.
type AskResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	FAQ          *FAQ   `json:"faq,omitempty"`
	EscalationID string `json:"escalationId,omitempty"`
	Priority     string `json:"priority,omitempty"`
}

// Escalated reports whether the query was handed to human support.
func (r *AskResponse) Escalated() bool {
	return r.Status == "escalated"
}

// Stats holds the usage counters of one FAQ.
type Stats struct {
	ID              string  `json:"id"`
	ViewCount       int64   `json:"viewCount"`
	HelpfulCount    int64   `json:"helpfulCount"`
	NotHelpfulCount int64   `json:"notHelpfulCount"`
	HelpfulRatio    float64 `json:"helpfulRatio"`
}

// Escalation is one entry of the support queue.
type Escalation struct {
	ID         string `json:"id"`
	QueryText  string `json:"queryText"`
	UserID     string `json:"userId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	Priority   string `json:"priority"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
	ResolvedAt string `json:"resolvedAt,omitempty"`
}

// Search runs an FAQ search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/faqs/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ask answers a chat query or escalates it.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	var resp AskResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/assist/ask", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordView counts one view of an FAQ.
func (c *Client) RecordView(ctx context.Context, faqID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/faqs/"+url.PathEscape(faqID)+"/view", nil, nil)
}

// Rate records a helpful or not-helpful vote.
func (c *Client) Rate(ctx context.Context, faqID string, helpful bool) error {
	body := map[string]bool{"helpful": helpful}
	return c.do(ctx, http.MethodPost, "/api/v1/faqs/"+url.PathEscape(faqID)+"/rating", body, nil)
}

// Stats returns the usage counters of an FAQ.
func (c *Client) Stats(ctx context.Context, faqID string) (*Stats, error) {
	var resp Stats
	if err := c.do(ctx, http.MethodGet, "/api/v1/faqs/"+url.PathEscape(faqID)+"/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListEscalations lists escalations, optionally filtered by status.
func (c *Client) ListEscalations(ctx context.Context, status string) ([]Escalation, error) {
	path := "/api/v1/escalations"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Escalations []Escalation `json:"escalations"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Escalations, nil
}

// UpdateEscalation moves an escalation to a new status.
func (c *Client) UpdateEscalation(ctx context.Context, id, status string) (*Escalation, error) {
	var resp Escalation
	body := map[string]string{"status": status}
	if err := c.do(ctx, http.MethodPatch, "/api/v1/escalations/"+url.PathEscape(id), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
