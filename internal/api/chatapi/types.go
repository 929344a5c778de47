// Package chatapi provides the wire types for the RAG chat backend API.
// These types are shared by the HTTP transport, the stream decoder and the
// development stub server.
package chatapi

// ExchangeType selects the backend endpoint for an exchange.
type ExchangeType string

const (
	// TypeAsk is the single-turn question endpoint. The question is not
	// echoed into the thread and no history is sent.
	TypeAsk ExchangeType = "ask"

	// TypeChat is the conversational endpoint carrying prior turns.
	TypeChat ExchangeType = "chat"
)

// HistoryTurn is one prior exchange sent with a chat request.
type HistoryTurn struct {
	User string `json:"user"`
	Bot  string `json:"bot,omitempty"`
}

// Overrides carries optional per-request tuning parameters. Zero values are
// omitted so the backend applies its own defaults.
type Overrides struct {
	RetrievalMode    string   `json:"retrieval_mode,omitempty"`
	Top              int      `json:"top,omitempty"`
	Temperature      *float32 `json:"temperature,omitempty"`
	PromptTemplate   string   `json:"prompt_template,omitempty"`
	ExcludeCategory  string   `json:"exclude_category,omitempty"`
	SemanticRanker   bool     `json:"semantic_ranker,omitempty"`
	SemanticCaptions bool     `json:"semantic_captions,omitempty"`
	SuggestFollowup  bool     `json:"suggest_followup_questions,omitempty"`
}

// ChatRequest is the request body for both the ask and chat endpoints.
type ChatRequest struct {
	Question  string        `json:"question"`
	Type      ExchangeType  `json:"type"`
	History   []HistoryTurn `json:"history,omitempty"`
	Overrides *Overrides    `json:"overrides,omitempty"`
	Stream    bool          `json:"stream,omitempty"`
}

// Context carries the side-channel metadata a response may include alongside
// the answer text.
type Context struct {
	Thoughts          string   `json:"thoughts,omitempty"`
	DataPoints        []string `json:"data_points,omitempty"`
	FollowupQuestions []string `json:"followup_questions,omitempty"`
}

// Message is the fully-materialized answer in a non-streamed response.
type Message struct {
	Content string   `json:"content"`
	Role    string   `json:"role"`
	Context *Context `json:"context,omitempty"`
}

// Choice represents a completion choice in a non-streamed response.
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
}

// ChatResponse is the full (non-streamed) response body.
type ChatResponse struct {
	Choices []Choice `json:"choices"`
}

// Content returns the answer text of the first choice, or "" if absent.
func (r *ChatResponse) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Context returns the side-channel metadata of the first choice, or nil.
func (r *ChatResponse) Context() *Context {
	if len(r.Choices) == 0 {
		return nil
	}
	return r.Choices[0].Message.Context
}

// ChunkDelta is the incremental content carried by a streamed chunk. Content
// and Context are both optional; a terminal chunk typically carries only
// Context.
type ChunkDelta struct {
	Content string   `json:"content,omitempty"`
	Context *Context `json:"context,omitempty"`
}

// ChunkChoice represents a choice in a streamed chunk.
type ChunkChoice struct {
	Index int        `json:"index"`
	Delta ChunkDelta `json:"delta"`
}

// ChatChunk is one newline-delimited JSON object in a streamed response body.
type ChatChunk struct {
	Choices []ChunkChoice `json:"choices"`
}

// Delta returns the first choice's delta, or the zero value if absent.
func (c *ChatChunk) Delta() ChunkDelta {
	if len(c.Choices) == 0 {
		return ChunkDelta{}
	}
	return c.Choices[0].Delta
}
