// ABOUTME: Streaming HTTP client for the supervisor backend's chat endpoints.
// ABOUTME: Posts {message, session_id} and yields decoded trace events plus a terminal completion-or-error signal.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/2389-research/kicksight/trace"
)

// tracePath is the streaming trace endpoint on the supervisor backend.
const tracePath = "/api/chat/stream/trace"

// chatPath is the synchronous chat endpoint.
const chatPath = "/api/chat"

// Request is the chat request body. SessionID is the opaque session token
// correlating this client with backend-side agent context.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the synchronous chat endpoint's body.
type ChatResponse struct {
	Response     any    `json:"response"`
	SessionID    string `json:"session_id"`
	ResponseType string `json:"response_type"`
	Timestamp    string `json:"timestamp"`
}

// Client talks to one supervisor backend.
type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests, timeouts).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a Client for the backend at base (e.g.
// "http://127.0.0.1:8000"). A trailing slash on base is tolerated.
func NewClient(base string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		// No overall timeout: trace streams are long-lived. Liveness is the
		// session runner's inactivity timeout, not a transport deadline.
		http: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamTrace opens the streaming trace endpoint for one request. It returns
// a channel of decoded events and a channel that delivers at most one
// terminal error; both are closed when the stream ends. A nil-error close of
// the error channel means the stream ended cleanly (which may still be
// uninformative: the caller decides what a stream without a final_response
// means).
func (c *Client) StreamTrace(ctx context.Context, message, sessionToken string) (<-chan trace.Event, <-chan error, error) {
	body, err := json.Marshal(Request{Message: message, SessionID: sessionToken})
	if err != nil {
		return nil, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+tracePath, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, nil, fmt.Errorf("trace stream status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	events := make(chan trace.Event, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errc)
		defer func() { _ = resp.Body.Close() }()

		dec := NewDecoder(resp.Body)
		for {
			ev, err := dec.Next()
			if err != nil {
				if err != io.EOF {
					errc <- fmt.Errorf("read trace stream: %w", err)
				}
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return events, errc, nil
}

// Chat calls the synchronous chat endpoint, for one-shot (non-streaming) use.
func (c *Client) Chat(ctx context.Context, message, sessionToken string) (*ChatResponse, error) {
	body, err := json.Marshal(Request{Message: message, SessionID: sessionToken})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("chat status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	return &out, nil
}
