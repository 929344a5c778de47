package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tjfontaine/ragchat/internal/api/chatapi"
	"github.com/tjfontaine/ragchat/internal/chat"
	"github.com/tjfontaine/ragchat/internal/domain"
)

func TestClient_SendFullResponse(t *testing.T) {
	var gotReq chatapi.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/chat" {
			t.Errorf("path = %s, want /chat", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"index":0,"message":{"content":"An answer.","role":"assistant","context":{"thoughts":"searched"}}}]}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	resp, err := c.Send(context.Background(),
		&chatapi.ChatRequest{Question: "q?", Type: chatapi.TypeChat},
		chat.RequestOptions{URL: "/chat"},
	)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotReq.Question != "q?" {
		t.Errorf("request question = %q", gotReq.Question)
	}
	if resp.Full == nil || resp.Stream != nil {
		t.Fatalf("response = %+v, want full response only", resp)
	}
	if got := resp.Full.Content(); got != "An answer." {
		t.Errorf("Content() = %q", got)
	}
	if ctx := resp.Full.Context(); ctx == nil || ctx.Thoughts != "searched" {
		t.Errorf("Context() = %+v", ctx)
	}
}

func TestClient_SendStreamReturnsUnreadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accept := r.Header.Get("Accept"); accept != "application/x-ndjson" {
			t.Errorf("Accept = %q", accept)
		}
		io.WriteString(w, `{"choices":[{"index":0,"delta":{"content":"Hi"}}]}`+"\n")
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	resp, err := c.Send(context.Background(),
		&chatapi.ChatRequest{Question: "q?", Type: chatapi.TypeChat, Stream: true},
		chat.RequestOptions{URL: "/chat", Stream: true},
	)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Stream == nil || resp.Full != nil {
		t.Fatalf("response = %+v, want stream body only", resp)
	}
	defer resp.Stream.Close()

	body, err := io.ReadAll(resp.Stream)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if string(body) != `{"choices":[{"index":0,"delta":{"content":"Hi"}}]}`+"\n" {
		t.Errorf("stream body = %q", body)
	}
}

func TestClient_SendErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType domain.ErrorType
		wantMsg  string
	}{
		{
			name:     "structured 400",
			status:   http.StatusBadRequest,
			body:     `{"error":{"message":"question too long"}}`,
			wantType: domain.ErrorTypeInvalidRequest,
			wantMsg:  "question too long",
		},
		{
			name:     "unstructured 500",
			status:   http.StatusInternalServerError,
			body:     "backend exploded",
			wantType: domain.ErrorTypeServer,
			wantMsg:  "backend exploded",
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"slow down"}}`,
			wantType: domain.ErrorTypeRateLimit,
			wantMsg:  "slow down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(WithBaseURL(srv.URL))
			_, err := c.Send(context.Background(),
				&chatapi.ChatRequest{Question: "q?"},
				chat.RequestOptions{URL: "/chat"},
			)
			if err == nil {
				t.Fatal("Send() error = nil, want APIError")
			}
			apiErr := domain.ToCanonical(err)
			if apiErr.Type != tt.wantType {
				t.Errorf("error type = %v, want %v", apiErr.Type, tt.wantType)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestClient_SendConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Send(context.Background(),
		&chatapi.ChatRequest{Question: "q?"},
		chat.RequestOptions{URL: "/chat"},
	)
	if err == nil {
		t.Fatal("Send() error = nil, want transport error")
	}
	apiErr := domain.ToCanonical(err)
	if apiErr.Type != domain.ErrorTypeTransport {
		t.Errorf("error type = %v, want transport", apiErr.Type)
	}
	if apiErr.StatusCode != 0 {
		t.Errorf("status = %d, want 0 for sub-HTTP failure", apiErr.StatusCode)
	}
}

func TestClient_SendUndecodableFullResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json at all")
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Send(context.Background(),
		&chatapi.ChatRequest{Question: "q?"},
		chat.RequestOptions{URL: "/chat"},
	)
	if err == nil {
		t.Fatal("Send() error = nil, want decode error")
	}
	if apiErr := domain.ToCanonical(err); apiErr.Type != domain.ErrorTypeDecode {
		t.Errorf("error type = %v, want decode", apiErr.Type)
	}
}

func TestClient_AbsoluteURLBypassesBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"index":0,"message":{"content":"ok","role":"assistant"}}]}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL("http://invalid.example"))
	resp, err := c.Send(context.Background(),
		&chatapi.ChatRequest{Question: "q?"},
		chat.RequestOptions{URL: srv.URL + "/ask"},
	)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Full.Content() != "ok" {
		t.Errorf("Content() = %q", resp.Full.Content())
	}
}
