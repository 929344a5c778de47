package chat

import (
	"reflect"
	"testing"
	"time"

	"github.com/tjfontaine/ragchat/internal/extract"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestTurn_SetAnswerReplacesCurrentSegment(t *testing.T) {
	turn := NewAssistantTurn(testTime)

	turn.SetAnswer("Hel")
	turn.SetAnswer("Hello")

	if got := turn.AnswerText(); got != "Hello" {
		t.Errorf("AnswerText() = %q, want %q", got, "Hello")
	}
	if len(turn.Text) != 1 {
		t.Errorf("segments = %d, want 1 (replace, not append)", len(turn.Text))
	}
}

func TestTurn_ClosedTurnRejectsMutation(t *testing.T) {
	turn := NewAssistantTurn(testTime)
	turn.SetAnswer("final")
	turn.Close()

	turn.SetAnswer("overwritten")
	turn.ApplyExtract(extract.Extract("other [a.md]"))

	if got := turn.AnswerText(); got != "final" {
		t.Errorf("AnswerText() after close = %q, want %q", got, "final")
	}
	if len(turn.Citations) != 0 {
		t.Errorf("citations mutated after close: %+v", turn.Citations)
	}
}

func TestTurn_CitationDedup(t *testing.T) {
	turn := NewAssistantTurn(testTime)

	turn.ApplyExtract(extract.Extract("See [a.md] then [b.md] then [a.md]."))

	want := []Citation{{Ref: 1, Text: "a.md"}, {Ref: 2, Text: "b.md"}}
	if !reflect.DeepEqual(turn.Citations, want) {
		t.Errorf("Citations = %+v, want %+v", turn.Citations, want)
	}
}

func TestTurn_AddFollowupsSkipsDuplicates(t *testing.T) {
	turn := NewAssistantTurn(testTime)

	turn.ApplyExtract(extract.Extract("Sure.<<More detail?>>"))
	turn.AddFollowups([]string{"More detail?", "Related policy?"})

	want := []string{"More detail?", "Related policy?"}
	if !reflect.DeepEqual(turn.FollowupQuestions, want) {
		t.Errorf("FollowupQuestions = %v, want %v", turn.FollowupQuestions, want)
	}
}

func TestTurn_TimestampAndRoleImmutable(t *testing.T) {
	turn := NewUserTurn(testTime, "hi")

	if !turn.IsUser {
		t.Error("user turn not marked as user")
	}
	if !turn.Timestamp.Equal(testTime) {
		t.Errorf("Timestamp = %v, want %v", turn.Timestamp, testTime)
	}
	if turn.Open() {
		t.Error("user turn should be closed at creation")
	}
}

func TestThread_AppendAndReset(t *testing.T) {
	th := &Thread{}

	th.Append(NewUserTurn(testTime, "q1"))
	th.Append(NewErrorTurn(testTime, "boom"))

	if th.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", th.Len())
	}
	if th.Last().Error == nil {
		t.Error("Last() should be the error turn")
	}

	th.Reset()
	if th.Len() != 0 || th.Last() != nil {
		t.Errorf("Reset() left %d turns", th.Len())
	}
}
