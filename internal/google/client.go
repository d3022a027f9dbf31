// Package google talks to the Google Photos Picker and Library APIs.
package google

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
)

const (
	defaultPickerBaseURL  = "https://photospicker.googleapis.com/v1"
	defaultLibraryBaseURL = "https://photoslibrary.googleapis.com/v1"

	// maxErrorBody bounds how much of a failed response is kept.
	maxErrorBody = 64 << 10
)

// TokenSource supplies a currently valid access token.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// APIError is a non-2xx response from Google.
type APIError struct {
	Op         string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google %s: status %d: %s", e.Op, e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// Client calls the Google APIs with the owner's credentials.
type Client struct {
	tokens     TokenSource
	http       *http.Client
	pickerURL  string
	libraryURL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPickerBaseURL overrides the Picker API endpoint.
func WithPickerBaseURL(u string) Option {
	return func(c *Client) { c.pickerURL = strings.TrimRight(u, "/") }
}

// WithLibraryBaseURL overrides the Library API endpoint.
func WithLibraryBaseURL(u string) Option {
	return func(c *Client) { c.libraryURL = strings.TrimRight(u, "/") }
}

// NewClient creates a Client. The token source is asked for a token before every request.
func NewClient(tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		tokens:     tokens,
		http:       &http.Client{Timeout: 2 * time.Minute},
		pickerURL:  defaultPickerBaseURL,
		libraryURL: defaultLibraryBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends an authenticated request and returns the response for 2xx statuses.
func (c *Client) do(ctx context.Context, op, method, rawURL string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: data}
	}
	return resp, nil
}

// doJSON sends an authenticated request and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, op, method, rawURL string, body, out any) error {
	resp, err := c.do(ctx, op, method, rawURL, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func withQuery(base string, q url.Values) string {
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}
