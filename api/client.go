// Package api provides the shared HTTP client used for every call to the
// Slippi servers, along with a small GraphQL request builder. One client is
// created per device and shared by the user manager and the game reporter.
package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultGraphQLEndpoint is where GraphQL queries and mutations are sent.
const DefaultGraphQLEndpoint = "https://internal.slippi.gg/graphql"

const requestTimeout = 30 * time.Second

// Client wraps an http.Client with the user agent and endpoint configuration
// shared by all server calls. Safe for concurrent use.
type Client struct {
	http      *http.Client
	userAgent string

	// GraphQLEndpoint can be pointed at a test server. Set before first use.
	GraphQLEndpoint string
}

// NewClient returns a client whose user agent carries the current build
// version, e.g. "SlippiDolphin/3.4.0".
func NewClient(semver string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent:       fmt.Sprintf("SlippiDolphin/%s", semver),
		GraphQLEndpoint: DefaultGraphQLEndpoint,
	}
}

// Post sends a POST with the given content type and body, returning the
// response body. Non-2xx statuses are returned as errors.
func (c *Client) Post(url, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.send(req)
}

// Put sends a PUT with the supplied headers and body. Used for replay
// uploads, where the destination bucket dictates the header set.
func (c *Client) Put(url string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.send(req)
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return body, nil
}
