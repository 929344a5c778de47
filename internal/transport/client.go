// Package transport is the HTTP client for the RAG chat backend. It
// dispatches ask and chat requests and hands streamed bodies back unread, so
// the stream accumulator controls the read pace.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/ragchat/internal/api/chatapi"
	"github.com/tjfontaine/ragchat/internal/chat"
	"github.com/tjfontaine/ragchat/internal/domain"
)

const (
	defaultBaseURL = "http://localhost:8080"
	userAgent      = "ragchat/1.0"

	// maxErrorBody caps how much of an error response is read into the
	// error message.
	maxErrorBody = 64 * 1024
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is the HTTP client for the chat backend. It implements
// chat.Transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. Requests are traced through the
// otelhttp transport unless a custom HTTP client is supplied.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send dispatches one chat request. For non-streamed requests the response
// body is fully read and decoded before returning. For streamed requests the
// body is returned unread; the caller owns closing it.
//
// All failures come back as *domain.APIError so the caller can branch on the
// category and status without inspecting wrapped errors.
func (c *Client) Send(ctx context.Context, req *chatapi.ChatRequest, opts chat.RequestOptions) (*chat.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, domain.ErrDecode(fmt.Sprintf("marshal request: %v", err))
	}

	url := opts.URL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = c.baseURL + url
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.ErrTransport(fmt.Sprintf("create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if opts.Stream {
		httpReq.Header.Set("Accept", "application/x-ndjson")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrTransport(fmt.Sprintf("request failed: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, chatapi.ParseErrorResponse(resp.StatusCode, respBody)
	}

	if opts.Stream {
		return &chat.Response{Stream: resp.Body}, nil
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrTransport(fmt.Sprintf("read response: %v", err))
	}

	var result chatapi.ChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.ErrDecode(fmt.Sprintf("unmarshal response: %v", err))
	}
	return &chat.Response{Full: &result}, nil
}
