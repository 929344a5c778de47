// Package chat holds the observable chat thread and the session controller
// that drives one question/answer exchange at a time against a chat backend.
package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/ragchat/internal/extract"
)

// Citation is one source reference attached to a turn. Two citations are the
// same citation when their Text matches; Ref is the first-seen ordinal.
type Citation struct {
	Ref  int    `json:"ref"`
	Text string `json:"text"`
}

// TextSegment is one piece of a turn's answer text with the reasoning steps
// that follow it. Turns built incrementally from a stream may grow several
// segments.
type TextSegment struct {
	Value          string   `json:"value"`
	FollowingSteps []string `json:"following_steps,omitempty"`
}

// TurnError marks a failed turn. Its message is user-facing.
type TurnError struct {
	Message string `json:"message"`
}

// Turn is one exchange unit in the thread. ID, Timestamp and IsUser are
// fixed at creation. Text, Citations and FollowupQuestions may be mutated in
// place only while the turn is still open, which is only ever true of the
// most recent assistant turn during an exchange.
type Turn struct {
	ID                string        `json:"id"`
	IsUser            bool          `json:"is_user"`
	Timestamp         time.Time     `json:"timestamp"`
	Text              []TextSegment `json:"text"`
	Citations         []Citation    `json:"citations,omitempty"`
	FollowupQuestions []string      `json:"followup_questions,omitempty"`
	Error             *TurnError    `json:"error,omitempty"`

	open bool
}

// NewUserTurn creates a closed turn holding the user's (already sanitized)
// question.
func NewUserTurn(now time.Time, question string) *Turn {
	return &Turn{
		ID:        uuid.New().String(),
		IsUser:    true,
		Timestamp: now,
		Text:      []TextSegment{{Value: question}},
	}
}

// NewAssistantTurn creates an open, empty assistant turn ready to
// accumulate a streamed answer.
func NewAssistantTurn(now time.Time) *Turn {
	return &Turn{
		ID:        uuid.New().String(),
		Timestamp: now,
		open:      true,
	}
}

// NewErrorTurn creates a closed assistant turn carrying only an error.
func NewErrorTurn(now time.Time, message string) *Turn {
	return &Turn{
		ID:        uuid.New().String(),
		Timestamp: now,
		Error:     &TurnError{Message: message},
	}
}

// Open reports whether the turn still accepts mutation.
func (t *Turn) Open() bool { return t.open }

// Close seals the turn against further mutation. Idempotent.
func (t *Turn) Close() { t.open = false }

// SetAnswer replaces the current text segment with the full cumulative
// answer. It implements the stream sink contract: each call carries the
// whole text so far, never a delta. No-op on a closed turn.
func (t *Turn) SetAnswer(text string) {
	if !t.open {
		return
	}
	if len(t.Text) == 0 {
		t.Text = append(t.Text, TextSegment{})
	}
	t.Text[len(t.Text)-1].Value = text
}

// ApplyExtract folds an extraction result into the turn: the cleaned text
// and its steps replace the current segment, citations merge by text
// identity, and follow-up questions append in order. No-op on a closed turn.
func (t *Turn) ApplyExtract(res extract.Result) {
	if !t.open {
		return
	}
	if len(t.Text) == 0 {
		t.Text = append(t.Text, TextSegment{})
	}
	seg := &t.Text[len(t.Text)-1]
	seg.Value = res.CleanedText
	seg.FollowingSteps = res.FollowingSteps
	for _, c := range res.Citations {
		t.addCitation(c.Text)
	}
	t.FollowupQuestions = append(t.FollowupQuestions, res.FollowupQuestions...)
}

// AddFollowups appends side-channel follow-up questions, skipping ones the
// marker extraction already produced. No-op on a closed turn.
func (t *Turn) AddFollowups(questions []string) {
	if !t.open {
		return
	}
	for _, q := range questions {
		dup := false
		for _, have := range t.FollowupQuestions {
			if have == q {
				dup = true
				break
			}
		}
		if !dup {
			t.FollowupQuestions = append(t.FollowupQuestions, q)
		}
	}
}

// SetError records a failure on the turn. Allowed even on an open turn:
// a stream can fail after partial text was assembled, and that text is kept.
func (t *Turn) SetError(message string) {
	t.Error = &TurnError{Message: message}
}

// AnswerText returns the concatenated text of all segments.
func (t *Turn) AnswerText() string {
	switch len(t.Text) {
	case 0:
		return ""
	case 1:
		return t.Text[0].Value
	}
	var out string
	for _, seg := range t.Text {
		out += seg.Value
	}
	return out
}

// addCitation merges a citation by text identity, assigning the next ordinal
// on first appearance.
func (t *Turn) addCitation(text string) {
	for _, c := range t.Citations {
		if c.Text == text {
			return
		}
	}
	t.Citations = append(t.Citations, Citation{Ref: len(t.Citations) + 1, Text: text})
}

// Thread is the ordered chat history: append-only, except that the last
// turn may be mutated while open, and Reset clears everything. It has no
// internal locking — the session controller is its only writer and exchange
// flow is strictly sequential.
type Thread struct {
	turns []*Turn
}

// Append adds a turn to the end of the thread.
func (th *Thread) Append(t *Turn) { th.turns = append(th.turns, t) }

// Last returns the most recent turn, or nil for an empty thread.
func (th *Thread) Last() *Turn {
	if len(th.turns) == 0 {
		return nil
	}
	return th.turns[len(th.turns)-1]
}

// Turns returns the thread content in order. The returned slice is shared;
// callers observe, they do not mutate.
func (th *Thread) Turns() []*Turn { return th.turns }

// Len returns the number of turns.
func (th *Thread) Len() int { return len(th.turns) }

// Reset removes every turn. This is the only operation that ever removes a
// turn from the thread.
func (th *Thread) Reset() { th.turns = nil }
