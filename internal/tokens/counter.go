// Package tokens provides approximate token counting for usage logging.
// The backend owns real usage accounting; this exists so the client can log
// roughly how large questions and answers are.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens with the cl100k_base encoding. The codec is loaded
// lazily on first use and cached; Counter is safe for concurrent use.
type Counter struct {
	mu    sync.Mutex
	codec tokenizer.Codec
}

// NewCounter creates a Counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Count returns the approximate token count of text.
func (c *Counter) Count(text string) (int, error) {
	codec, err := c.getCodec()
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("encoding text: %w", err)
	}
	return len(ids), nil
}

func (c *Counter) getCodec() (tokenizer.Codec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codec != nil {
		return c.codec, nil
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}
	c.codec = codec
	return codec, nil
}
