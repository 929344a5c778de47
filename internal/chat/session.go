package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/ragchat/internal/api/chatapi"
	"github.com/tjfontaine/ragchat/internal/domain"
	"github.com/tjfontaine/ragchat/internal/extract"
	"github.com/tjfontaine/ragchat/internal/stream"
	"github.com/tjfontaine/ragchat/internal/tokens"
)

// State is the session's exchange lifecycle state.
type State string

const (
	// StateIdle means no exchange is in flight; Submit is accepted.
	StateIdle State = "idle"

	// StateSubmitting means the request is being dispatched.
	StateSubmitting State = "submitting"

	// StateStreaming means a streamed response is being accumulated.
	StateStreaming State = "streaming"

	// StateAwaitingFullResponse means a non-streamed response is being
	// decoded and post-processed.
	StateAwaitingFullResponse State = "awaiting_full_response"
)

var (
	// ErrEmptyQuestion rejects a submission whose question is empty after
	// sanitizing and trimming. Nothing is dispatched and the thread is
	// untouched.
	ErrEmptyQuestion = errors.New("chat: question is empty")

	// ErrBusy rejects a submission while another exchange is in flight.
	ErrBusy = errors.New("chat: an exchange is already in flight")
)

// RequestOptions carries per-dispatch HTTP options for the transport.
type RequestOptions struct {
	URL    string
	Stream bool
}

// Response is what the transport hands back: exactly one of Full or Stream
// is set, depending on whether the backend answered with a complete JSON
// document or a live chunk stream.
type Response struct {
	Full   *chatapi.ChatResponse
	Stream io.ReadCloser
}

// Transport dispatches a chat request. Implementations must return a typed
// *domain.APIError (carrying the HTTP status when one was received) on
// failure, and must honor ctx cancellation by aborting the underlying
// request.
type Transport interface {
	Send(ctx context.Context, req *chatapi.ChatRequest, opts RequestOptions) (*Response, error)
}

// Sanitizer strips unsafe markup from user input before it is echoed into
// the thread or sent to the backend.
type Sanitizer interface {
	Sanitize(raw string) string
}

// Clock supplies turn timestamps; swapped out in tests.
type Clock func() time.Time

// Archiver persists finished turns. Archive failures are logged, never
// surfaced into the exchange.
type Archiver interface {
	ArchiveTurn(ctx context.Context, threadID string, seq int, turn *Turn) error
}

// Config is the session's static configuration, supplied at construction.
type Config struct {
	// Mode selects the backend endpoint. TypeChat echoes the question into
	// the thread and sends prior turns as history; TypeAsk is single-turn
	// and echoes nothing.
	Mode chatapi.ExchangeType

	// ChatURL and AskURL are the endpoint URLs handed to the transport.
	ChatURL string
	AskURL  string

	// Stream requests a chunked streaming response.
	Stream bool

	// Overrides are forwarded on every request.
	Overrides *chatapi.Overrides
}

// Session coordinates one question/answer exchange at a time against the
// chat thread. At most one exchange is in flight; Submit blocks for the
// duration of the exchange, so interactive callers run it on its own
// goroutine and use Cancel from another.
//
// Exchange failures do not propagate out of Submit: they are recorded as an
// error on the failed turn and the session returns to idle so the user can
// retry. Submit only returns validation and concurrency errors.
type Session struct {
	transport Transport
	cfg       Config
	san       Sanitizer
	clock     Clock
	logger    *slog.Logger
	counter   *tokens.Counter
	archiver  Archiver
	onUpdate  func()

	mu          sync.Mutex
	state       State
	gen         int
	cancelled   bool
	cancel      context.CancelFunc
	threadID    string
	thread      *Thread
	thoughts    string
	dataPoints  []string
	hasAPIError bool
}

// Option configures a Session.
type Option func(*Session)

// WithSanitizer replaces the default input sanitizer.
func WithSanitizer(s Sanitizer) Option {
	return func(se *Session) { se.san = s }
}

// WithClock replaces the turn timestamp source.
func WithClock(c Clock) Option {
	return func(se *Session) { se.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(se *Session) { se.logger = l }
}

// WithArchiver persists turns as exchanges finish.
func WithArchiver(a Archiver) Option {
	return func(se *Session) { se.archiver = a }
}

// WithOnUpdate registers the observer notified after each thread mutation.
// The callback runs synchronously with the mutation, so it always observes
// a consistent thread.
func WithOnUpdate(fn func()) Option {
	return func(se *Session) { se.onUpdate = fn }
}

// NewSession creates an idle session with an empty thread.
func NewSession(transport Transport, cfg Config, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		cfg:       cfg,
		san:       DefaultSanitizer{},
		clock:     time.Now,
		logger:    slog.Default(),
		counter:   tokens.NewCounter(),
		state:     StateIdle,
		threadID:  uuid.New().String(),
		thread:    &Thread{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Thread returns the session's chat thread.
func (s *Session) Thread() *Thread { return s.thread }

// ThreadID returns the stable identifier under which turns are archived.
func (s *Session) ThreadID() string { return s.threadID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsProcessingResponse reports whether a streamed answer is accumulating.
func (s *Session) IsProcessingResponse() bool {
	return s.State() == StateStreaming
}

// IsAwaitingResponse reports whether a request is out but no answer chunk
// has been applied yet.
func (s *Session) IsAwaitingResponse() bool {
	st := s.State()
	return st == StateSubmitting || st == StateAwaitingFullResponse
}

// HasAPIError reports whether the most recent exchange failed.
func (s *Session) HasAPIError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasAPIError
}

// CanShowThoughtProcess reports whether the last exchange produced a
// thought-process side channel.
func (s *Session) CanShowThoughtProcess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thoughts != ""
}

// Thoughts returns the last exchange's reasoning side channel, if any.
func (s *Session) Thoughts() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thoughts
}

// DataPoints returns the last exchange's supporting data, if any.
func (s *Session) DataPoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataPoints
}

// Submit runs one full exchange for question and blocks until it resolves.
// It returns ErrEmptyQuestion for blank input and ErrBusy while another
// exchange is in flight; backend and transport failures are recorded on the
// thread instead of being returned.
func (s *Session) Submit(ctx context.Context, question string) error {
	q := strings.TrimSpace(s.san.Sanitize(question))
	if q == "" {
		return ErrEmptyQuestion
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrBusy
	}
	s.state = StateSubmitting
	s.gen++
	gen := s.gen
	s.cancelled = false
	s.hasAPIError = false
	s.thoughts = ""
	s.dataPoints = nil

	exCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	req := &chatapi.ChatRequest{
		Question:  q,
		Type:      s.cfg.Mode,
		Overrides: s.cfg.Overrides,
		Stream:    s.cfg.Stream,
	}
	opts := RequestOptions{URL: s.cfg.AskURL, Stream: s.cfg.Stream}
	var userTurn *Turn
	var userSeq int
	if s.cfg.Mode == chatapi.TypeChat {
		req.History = s.historyLocked()
		opts.URL = s.cfg.ChatURL
		userTurn = NewUserTurn(s.clock(), q)
		s.thread.Append(userTurn)
		userSeq = s.thread.Len() - 1
	}
	s.mu.Unlock()

	if userTurn != nil {
		s.notify(gen)
		s.archive(userSeq, userTurn)
	}

	resp, err := s.transport.Send(exCtx, req, opts)
	if err != nil {
		s.recordFailure(gen, err)
		return nil
	}

	switch {
	case resp.Stream != nil:
		s.runStreamed(exCtx, gen, resp.Stream)
	case resp.Full != nil:
		s.runFull(gen, resp.Full)
	default:
		s.recordFailure(gen, domain.ErrDecode("transport returned neither a body stream nor a full response"))
	}
	return nil
}

// Cancel aborts an in-flight streamed exchange. It is fire-and-forget: the
// session transitions to idle immediately and the accumulator finishes
// stopping on its own. Outside of streaming it is a no-op — non-streamed
// exchanges are a single indivisible decode.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state != StateStreaming || s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	cancel := s.cancel
	s.state = StateIdle
	s.mu.Unlock()
	cancel()
}

// Reset cancels any in-flight exchange and clears the whole thread.
func (s *Session) Reset() {
	s.Cancel()
	s.mu.Lock()
	s.thread.Reset()
	s.threadID = uuid.New().String()
	s.thoughts = ""
	s.dataPoints = nil
	s.hasAPIError = false
	gen := s.gen
	s.mu.Unlock()
	s.notify(gen)
}

// runStreamed drives the accumulator against a live chunk stream, then
// finalizes the open assistant turn.
func (s *Session) runStreamed(ctx context.Context, gen int, body io.ReadCloser) {
	defer body.Close()

	s.mu.Lock()
	s.state = StateStreaming
	turn := NewAssistantTurn(s.clock())
	s.thread.Append(turn)
	seq := s.thread.Len() - 1
	s.mu.Unlock()
	s.notify(gen)

	var acc stream.Accumulator
	res, err := acc.Run(ctx, body, turn, func() { s.notify(gen) })

	if err != nil {
		s.finishTurn(gen, seq, turn, res, domain.ToCanonical(err))
		return
	}

	if ctx.Err() == nil {
		// Normal end of stream: the answer text is final, so annotations
		// can be extracted. A cancelled stream keeps its raw partial text.
		turn.ApplyExtract(extract.Extract(res.Text))
		turn.AddFollowups(res.FollowupQuestions)
	}
	s.finishTurn(gen, seq, turn, res, nil)
}

// runFull decodes a fully-materialized response in one shot.
func (s *Session) runFull(gen int, full *chatapi.ChatResponse) {
	s.mu.Lock()
	s.state = StateAwaitingFullResponse
	turn := NewAssistantTurn(s.clock())
	s.thread.Append(turn)
	seq := s.thread.Len() - 1
	s.mu.Unlock()

	turn.ApplyExtract(extract.Extract(full.Content()))

	res := stream.Result{Text: full.Content()}
	if c := full.Context(); c != nil {
		res.Thoughts = c.Thoughts
		res.DataPoints = c.DataPoints
		turn.AddFollowups(c.FollowupQuestions)
	}
	s.finishTurn(gen, seq, turn, res, nil)
}

// finishTurn seals the turn, records any failure, stores side-channel
// metadata, archives, logs usage, and returns the session to idle. seq is
// the turn's position captured when it was appended; a cancelled exchange
// may finish after a newer one has grown the thread, and must still archive
// under its own row.
func (s *Session) finishTurn(gen, seq int, turn *Turn, res stream.Result, apiErr *domain.APIError) {
	if apiErr != nil {
		turn.SetError(apiErr.UserMessage())
		s.logger.Warn("exchange failed",
			slog.String("thread_id", s.threadID),
			slog.String("error_type", string(apiErr.Type)),
			slog.String("error", apiErr.Message),
		)
	}
	turn.Close()

	s.mu.Lock()
	if gen == s.gen {
		s.thoughts = res.Thoughts
		s.dataPoints = res.DataPoints
		s.hasAPIError = apiErr != nil
		s.state = StateIdle
		s.cancel = nil
	}
	s.mu.Unlock()
	s.notify(gen)

	s.archive(seq, turn)
	s.logUsage(turn)
}

// recordFailure records a failed exchange that never produced an open
// assistant turn (dispatch error) or whose open turn must be marked. The
// error lands on the open turn when one exists, otherwise on a fresh
// error-only turn.
func (s *Session) recordFailure(gen int, err error) {
	apiErr := domain.ToCanonical(err)

	s.mu.Lock()
	var turn *Turn
	if last := s.thread.Last(); last != nil && last.Open() {
		turn = last
	} else {
		turn = NewErrorTurn(s.clock(), apiErr.UserMessage())
		s.thread.Append(turn)
	}
	seq := s.thread.Len() - 1
	s.mu.Unlock()

	if turn.Error == nil {
		turn.SetError(apiErr.UserMessage())
	}
	turn.Close()

	s.mu.Lock()
	if gen == s.gen {
		s.hasAPIError = true
		s.state = StateIdle
		s.cancel = nil
	}
	s.mu.Unlock()
	s.notify(gen)

	s.logger.Warn("exchange failed",
		slog.String("thread_id", s.threadID),
		slog.String("error_type", string(apiErr.Type)),
		slog.String("error", apiErr.Message),
	)
	s.archive(seq, turn)
}

// historyLocked builds the request history from completed exchanges.
// Caller holds s.mu.
func (s *Session) historyLocked() []chatapi.HistoryTurn {
	var history []chatapi.HistoryTurn
	for _, t := range s.thread.Turns() {
		if t.Error != nil {
			continue
		}
		if t.IsUser {
			history = append(history, chatapi.HistoryTurn{User: t.AnswerText()})
			continue
		}
		if len(history) > 0 && history[len(history)-1].Bot == "" {
			history[len(history)-1].Bot = t.AnswerText()
		}
	}
	return history
}

// notify invokes the observer unless the exchange was cancelled or
// superseded — a late progress callback after the session moved on is a
// no-op.
func (s *Session) notify(gen int) {
	s.mu.Lock()
	ok := gen == s.gen && !s.cancelled
	cb := s.onUpdate
	s.mu.Unlock()
	if ok && cb != nil {
		cb()
	}
}

func (s *Session) archive(seq int, turn *Turn) {
	if s.archiver == nil {
		return
	}
	ctx, cancelArchive := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelArchive()
	if err := s.archiver.ArchiveTurn(ctx, s.threadID, seq, turn); err != nil {
		s.logger.Warn("archiving turn", slog.String("error", err.Error()))
	}
}

func (s *Session) logUsage(turn *Turn) {
	if s.counter == nil || turn.Error != nil {
		return
	}
	n, err := s.counter.Count(turn.AnswerText())
	if err != nil {
		return
	}
	s.logger.Debug("exchange complete",
		slog.String("thread_id", s.threadID),
		slog.Int("answer_tokens", n),
	)
}
