// Package extract pulls inline annotations out of free-form answer text.
//
// The answer-generation backend embeds three side channels in the answer
// using inline markers:
//
//	[report.md]       citation of a source document
//	<<What about X?>> suggested follow-up question
//	{{Looked up Y}}   reasoning step
//
// Extraction strips recognized markers from the text and returns the
// collected annotations. It is best-effort: malformed or unterminated
// markers are left in the text verbatim, never reported as errors.
package extract

import "strings"

// Citation is one extracted source reference. Ref is the ordinal assigned by
// first appearance among distinct citation texts, starting at 1. Repeats of
// the same text reuse the original ordinal.
type Citation struct {
	Ref  int
	Text string
}

// Result holds the cleaned text and every annotation found in it.
type Result struct {
	CleanedText       string
	Citations         []Citation
	FollowingSteps    []string
	FollowupQuestions []string
}

// Extract scans raw answer text for annotation markers. It is pure and
// deterministic: the same input always produces the same result, and input
// without markers is returned unchanged.
func Extract(raw string) Result {
	res := Result{}
	seen := map[string]int{}
	out := make([]byte, 0, len(raw))

	// Removing a marker also absorbs one space before it, so
	// "30 days [ref.md]." cleans to "30 days." rather than "30 days .".
	strip := func() {
		if len(out) > 0 && out[len(out)-1] == ' ' {
			out = out[:len(out)-1]
		}
	}

	i := 0
	for i < len(raw) {
		switch {
		case strings.HasPrefix(raw[i:], "<<"):
			if q, end, ok := scanDelimited(raw, i, "<<", ">>"); ok {
				if q != "" {
					res.FollowupQuestions = append(res.FollowupQuestions, q)
				}
				strip()
				i = end
				continue
			}
		case strings.HasPrefix(raw[i:], "{{"):
			if s, end, ok := scanDelimited(raw, i, "{{", "}}"); ok {
				if s != "" {
					res.FollowingSteps = append(res.FollowingSteps, s)
				}
				strip()
				i = end
				continue
			}
		case raw[i] == '[':
			if text, end, ok := scanCitation(raw, i); ok {
				if _, dup := seen[text]; !dup {
					ref := len(seen) + 1
					seen[text] = ref
					res.Citations = append(res.Citations, Citation{Ref: ref, Text: text})
				}
				strip()
				i = end
				continue
			}
		}
		out = append(out, raw[i])
		i++
	}

	res.CleanedText = strings.TrimSpace(string(out))
	return res
}

// scanDelimited matches open...close starting at i. Returns the trimmed
// inner text and the index just past the closing delimiter. An unterminated
// marker does not match.
func scanDelimited(raw string, i int, open, close string) (string, int, bool) {
	start := i + len(open)
	rel := strings.Index(raw[start:], close)
	if rel < 0 {
		return "", 0, false
	}
	inner := strings.TrimSpace(raw[start : start+rel])
	return inner, start + rel + len(close), true
}

// scanCitation matches a [ident] citation at i. The bracket content must be
// non-empty, single-line, and free of whitespace and nested brackets —
// citations name documents, not prose. Anything else stays in the text.
func scanCitation(raw string, i int) (string, int, bool) {
	rel := strings.IndexByte(raw[i+1:], ']')
	if rel < 0 {
		return "", 0, false
	}
	inner := raw[i+1 : i+1+rel]
	if inner == "" || strings.ContainsAny(inner, " \t\n[") {
		return "", 0, false
	}
	return inner, i + 1 + rel + 1, true
}
