package zulip

import (
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
	userAgent      = "zfetch/1.0"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Code       string
	Msg        string
}

func (e *APIError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsBadRequest reports whether err is a 400 from the server, which usually
// means the narrow names something that does not exist.
func IsBadRequest(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIPrefix  string // "/json" unless overridden
	Email      string
	APIKey     string
	HTTPClient *http.Client
}

// Client issues single-shot requests against a realm. It never retries.
type Client struct {
	base   *url.URL
	prefix string
	email  string
	apiKey string
	http   *http.Client
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("realm url is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse realm url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported realm url scheme %q", base.Scheme)
	}
	prefix := opts.APIPrefix
	if prefix == "" {
		prefix = "/json"
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		base:   base,
		prefix: "/" + strings.Trim(prefix, "/"),
		email:  opts.Email,
		apiKey: opts.APIKey,
		http:   hc,
	}, nil
}

// GetMessages fetches one page of messages around req.Anchor.
func (c *Client) GetMessages(ctx context.Context, req MessagesRequest) (*MessagesResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + c.prefix + "/messages"
	u.RawQuery = req.Values().Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if c.email != "" {
		httpReq.SetBasicAuth(c.email, c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}

	var out MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apiErr
	}
	var payload struct {
		Msg  string `json:"msg"`
		Code string `json:"code"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Msg = payload.Msg
		apiErr.Code = payload.Code
	}
	return apiErr
}
