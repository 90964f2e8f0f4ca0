// Package docintel is an HTTP client for the Azure AI Document Intelligence
// REST API: model-scoped analyze submissions, operation status polls and the
// getContent lookup.
package docintel

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

const (
	DefaultAPIVersion = "2024-11-30"

	operationLocationHeader = "Operation-Location"
	defaultTimeout          = 30 * time.Second
)

// ErrMissingLocator is returned when an accepted submission carries no Operation-Location.
var ErrMissingLocator = errors.New("missing operation location")

// AnalyzeRequest is one submission to a model-scoped analyze endpoint.
type AnalyzeRequest struct {
	ModelID      string
	OutputFormat string
	Pages        string
	URLSource    string
	Base64Source string
}

type analyzeBody struct {
	URLSource    string `json:"urlSource,omitempty"`
	Base64Source string `json:"base64Source,omitempty"`
}

// Response is a raw HTTP exchange with the service. Body always holds JSON:
// the upstream document when it parses, otherwise {"raw": text}.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       json.RawMessage
}

// Client talks to a single Document Intelligence resource.
type Client struct {
	endpoint   string
	apiVersion string
	auth       Authorizer
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAPIVersion overrides the api-version query parameter.
func WithAPIVersion(v string) Option {
	return func(c *Client) {
		if v = strings.TrimSpace(v); v != "" {
			c.apiVersion = v
		}
	}
}

// NewClient creates a client for the resource at endpoint.
func NewClient(endpoint string, auth Authorizer, opts ...Option) (*Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("docintel endpoint is required")
	}
	if auth == nil {
		return nil, errors.New("docintel authorizer is required")
	}
	c := &Client{
		endpoint:   endpoint,
		apiVersion: DefaultAPIVersion,
		auth:       auth,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AnalyzeURL returns the submission URL for a model and output format.
func (c *Client) AnalyzeURL(req AnalyzeRequest) string {
	qs := url.Values{}
	qs.Set("api-version", c.apiVersion)
	qs.Set("outputContentFormat", req.OutputFormat)
	if req.Pages != "" {
		qs.Set("pages", req.Pages)
	}
	return fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?%s",
		c.endpoint, url.PathEscape(req.ModelID), qs.Encode())
}

// ResultLocator synthesizes the polling URL for an operation id.
func (c *Client) ResultLocator(modelID, operationID string) string {
	qs := url.Values{}
	qs.Set("api-version", c.apiVersion)
	return fmt.Sprintf("%s/documentintelligence/documentModels/%s/analyzeResults/%s?%s",
		c.endpoint, url.PathEscape(modelID), url.PathEscape(operationID), qs.Encode())
}

// OwnsLocator reports whether locator is an absolute URL on this client's
// endpoint (same scheme and host) under /documentintelligence/.
func (c *Client) OwnsLocator(locator string) bool {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	base, err := url.Parse(c.endpoint)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return false
	}
	return strings.HasPrefix(u.EscapedPath(), strings.TrimRight(base.EscapedPath(), "/")+"/documentintelligence/")
}

// Analyze submits a document. On 202 it returns the Operation-Location header
// verbatim; any other status is returned as a *Response with an empty locator.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (string, *Response, error) {
	payload, err := json.Marshal(analyzeBody{
		URLSource:    req.URLSource,
		Base64Source: req.Base64Source,
	})
	if err != nil {
		return "", nil, fmt.Errorf("marshal analyze body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AnalyzeURL(req), bytes.NewReader(payload))
	if err != nil {
		return "", nil, fmt.Errorf("create analyze request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq)
	if err != nil {
		return "", nil, err
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", resp, nil
	}
	locator := strings.TrimSpace(resp.Header.Get(operationLocationHeader))
	if locator == "" {
		return "", resp, ErrMissingLocator
	}
	return locator, resp, nil
}

// GetOperation fetches the status document at locator, used exactly as given.
func (c *Client) GetOperation(ctx context.Context, locator string) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}
	return c.do(httpReq)
}

// GetContent fetches previously extracted content by id.
func (c *Client) GetContent(ctx context.Context, id string) (*Response, error) {
	qs := url.Values{}
	qs.Set("api-version", c.apiVersion)
	u := fmt.Sprintf("%s/documentintelligence/getContent/%s?%s", c.endpoint, url.PathEscape(id), qs.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create getContent request: %w", err)
	}
	return c.do(httpReq)
}

func (c *Client) do(req *http.Request) (*Response, error) {
	if err := c.auth.Authorize(req.Context(), req); err != nil {
		return nil, fmt.Errorf("authorize request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       normalizeBody(body),
	}, nil
}

// normalizeBody keeps JSON as-is and wraps anything else as {"raw": text}.
func normalizeBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(body)})
	return wrapped
}
