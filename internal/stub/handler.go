// Package stub is a development backend that speaks the RAG chat wire
// protocol. It serves canned answers with citation and follow-up markers so
// the client pipeline can be exercised end to end without a real retrieval
// backend.
package stub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/ragchat/internal/api/chatapi"
	"github.com/tjfontaine/ragchat/internal/server"
)

// chunkDelay paces streamed chunks so clients observe real incremental
// delivery.
const chunkDelay = 25 * time.Millisecond

// Handler serves the stub chat endpoints.
type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Mount registers the stub endpoints on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/chat", h.handleExchange)
	r.Post("/ask", h.handleExchange)
}

func (h *Handler) handleExchange(w http.ResponseWriter, r *http.Request) {
	// ?fail=<status> simulates a backend failure so clients can test their
	// error paths.
	if failStr := r.URL.Query().Get("fail"); failStr != "" {
		status, err := strconv.Atoi(failStr)
		if err != nil || status < 400 || status > 599 {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid fail status %q", failStr))
			return
		}
		h.writeError(w, status, "simulated failure")
		return
	}

	var req chatapi.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.AddError(r.Context(), err)
		h.writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		h.writeError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	server.AddLogField(r.Context(), "exchange_type", string(req.Type))
	answer, ctx := h.compose(&req)

	if req.Stream {
		h.writeStream(w, r, answer, ctx)
		return
	}
	h.writeFull(w, answer, ctx)
}

// compose builds a deterministic answer with the full marker vocabulary:
// a citation, following steps and follow-up questions.
func (h *Handler) compose(req *chatapi.ChatRequest) (string, *chatapi.Context) {
	var b strings.Builder
	fmt.Fprintf(&b, "You asked: %q. ", req.Question)
	if len(req.History) > 0 {
		fmt.Fprintf(&b, "This thread has %d prior exchanges. ", len(req.History))
	}
	b.WriteString("According to the handbook, the answer is yes [handbook.md].")
	b.WriteString("{{Review the handbook section}}")
	if req.Overrides == nil || req.Overrides.SuggestFollowup {
		b.WriteString("<<Would you like more detail?>><<Is there a related policy?>>")
	}

	ctx := &chatapi.Context{
		Thoughts:   fmt.Sprintf("Searched the index for %q and ranked 2 passages.", req.Question),
		DataPoints: []string{"handbook.md: the relevant passage", "faq.md: a supporting passage"},
	}
	return b.String(), ctx
}

func (h *Handler) writeFull(w http.ResponseWriter, answer string, ctx *chatapi.Context) {
	resp := chatapi.ChatResponse{
		Choices: []chatapi.Choice{{
			Index:   0,
			Message: chatapi.Message{Content: answer, Role: "assistant", Context: ctx},
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn("writing response", slog.String("error", err.Error()))
	}
}

// writeStream emits the answer as newline-delimited JSON chunks: the text in
// word-sized deltas, then one terminal chunk carrying only metadata.
func (h *Handler) writeStream(w http.ResponseWriter, r *http.Request, answer string, ctx *chatapi.Context) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	words := strings.SplitAfter(answer, " ")
	for _, word := range words {
		if word == "" {
			continue
		}
		select {
		case <-r.Context().Done():
			return
		case <-time.After(chunkDelay):
		}

		chunk := chatapi.ChatChunk{
			Choices: []chatapi.ChunkChoice{{Index: 0, Delta: chatapi.ChunkDelta{Content: word}}},
		}
		if err := enc.Encode(chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	terminal := chatapi.ChatChunk{
		Choices: []chatapi.ChunkChoice{{Index: 0, Delta: chatapi.ChunkDelta{Context: ctx}}},
	}
	if err := enc.Encode(terminal); err != nil {
		return
	}
	if flusher != nil {
		flusher.Flush()
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := chatapi.ErrorResponse{Error: &chatapi.ErrorDetail{Message: message}}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("writing error response", slog.String("error", err.Error()))
	}
}
