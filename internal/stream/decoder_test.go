package stream

import (
	"errors"
	"strings"
	"testing"

	"github.com/tjfontaine/ragchat/internal/api/chatapi"
	"github.com/tjfontaine/ragchat/internal/domain"
)

func contentChunk(content string) string {
	return `{"choices":[{"index":0,"delta":{"content":"` + content + `"}}]}`
}

// drain feeds the input to a decoder in fixed-size slices and returns the
// concatenated content deltas.
func drain(t *testing.T, input string, sliceLen int) string {
	t.Helper()

	var dec Decoder
	var chunks []chatapi.ChatChunk
	for i := 0; i < len(input); i += sliceLen {
		end := i + sliceLen
		if end > len(input) {
			end = len(input)
		}
		chunks = append(chunks, dec.Feed([]byte(input[i:end]))...)
	}
	tail, err := dec.Flush()
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if tail != nil {
		chunks = append(chunks, *tail)
	}

	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Delta().Content)
	}
	return sb.String()
}

func TestDecoder_SplitInvariance(t *testing.T) {
	input := contentChunk("Hel") + "\n" + contentChunk("lo, ") + "\n" + contentChunk("world") + "\n"

	want := drain(t, input, len(input))
	for sliceLen := 1; sliceLen <= len(input); sliceLen++ {
		if got := drain(t, input, sliceLen); got != want {
			t.Fatalf("slice length %d: content = %q, want %q", sliceLen, got, want)
		}
	}
	if want != "Hello, world" {
		t.Errorf("concatenated content = %q, want %q", want, "Hello, world")
	}
}

func TestDecoder_TrailingChunkWithoutNewline(t *testing.T) {
	var dec Decoder

	chunks := dec.Feed([]byte(contentChunk("Hel") + "\n" + contentChunk("lo")))
	if len(chunks) != 1 || chunks[0].Delta().Content != "Hel" {
		t.Fatalf("Feed() chunks = %+v", chunks)
	}

	tail, err := dec.Flush()
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if tail == nil || tail.Delta().Content != "lo" {
		t.Errorf("Flush() tail = %+v, want content %q", tail, "lo")
	}
}

func TestDecoder_SkipsEmptyAndGarbageLines(t *testing.T) {
	var dec Decoder

	input := "\n" + contentChunk("a") + "\nnot json\n\n" + contentChunk("b") + "\n"
	chunks := dec.Feed([]byte(input))

	if len(chunks) != 2 {
		t.Fatalf("Feed() returned %d chunks, want 2", len(chunks))
	}
	if chunks[0].Delta().Content != "a" || chunks[1].Delta().Content != "b" {
		t.Errorf("chunks = %+v", chunks)
	}
}

func TestDecoder_UndecodableTrailingLine(t *testing.T) {
	var dec Decoder

	dec.Feed([]byte(contentChunk("ok") + "\n" + `{"choices": [truncat`))
	_, err := dec.Flush()
	if err == nil {
		t.Fatal("Flush() expected decode error for trailing garbage")
	}

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != domain.ErrorTypeDecode {
		t.Errorf("Flush() error = %v, want decode APIError", err)
	}
}

func TestDecoder_FlushEmpty(t *testing.T) {
	var dec Decoder
	tail, err := dec.Flush()
	if tail != nil || err != nil {
		t.Errorf("Flush() = %+v, %v, want nil, nil", tail, err)
	}
}
