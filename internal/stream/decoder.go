// Package stream ingests a streamed chat response body: it splits the byte
// stream into newline-delimited JSON chunks, decodes them, and accumulates
// the incremental answer into a chat turn.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tjfontaine/ragchat/internal/api/chatapi"
	"github.com/tjfontaine/ragchat/internal/domain"
)

// Decoder splits a byte stream into newline-delimited JSON chunks. A chunk
// straddling two reads is held back until the terminating newline arrives.
// Lines that are empty or fail to decode are skipped; only a trailing
// undecodable line at end of stream is reported, via Flush.
type Decoder struct {
	rem []byte
}

// Feed consumes the next read from the stream and returns every chunk whose
// boundary completed. Chunk order matches arrival order.
func (d *Decoder) Feed(p []byte) []chatapi.ChatChunk {
	d.rem = append(d.rem, p...)

	var chunks []chatapi.ChatChunk
	for {
		nl := bytes.IndexByte(d.rem, '\n')
		if nl < 0 {
			return chunks
		}
		line := bytes.TrimSpace(d.rem[:nl])
		d.rem = d.rem[nl+1:]

		if len(line) == 0 {
			continue
		}
		var chunk chatapi.ChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Mid-stream garbage is tolerated; the stream goes on.
			continue
		}
		chunks = append(chunks, chunk)
	}
}

// Flush resolves whatever is buffered once the stream has ended. A final
// line without a trailing newline is still a valid chunk; if it does not
// decode, that is a decode error rather than a skip, because nothing can
// follow to make up for it.
func (d *Decoder) Flush() (*chatapi.ChatChunk, error) {
	line := bytes.TrimSpace(d.rem)
	d.rem = nil
	if len(line) == 0 {
		return nil, nil
	}
	var chunk chatapi.ChatChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		return nil, domain.ErrDecode(fmt.Sprintf("undecodable trailing chunk: %v", err))
	}
	return &chunk, nil
}
