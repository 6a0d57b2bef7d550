// Package chunk splits document text into pieces small enough for the
// correction model's context window.
package chunk

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenChunker splits text on exact token boundaries using the same BPE
// encoding the correction model consumes.
type TokenChunker struct {
	codec     tokenizer.Codec
	maxTokens int
}

func NewTokenChunker(maxTokens int) (*TokenChunker, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &TokenChunker{codec: codec, maxTokens: maxTokens}, nil
}

// Split cuts text into chunks of at most maxTokens tokens each. Text that
// already fits is returned as a single chunk; decoding the windows in order
// reproduces the input exactly.
func (c *TokenChunker) Split(text string) ([]string, error) {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("encode text: %w", err)
	}
	if len(ids) <= c.maxTokens {
		return []string{text}, nil
	}

	chunks := make([]string, 0, (len(ids)+c.maxTokens-1)/c.maxTokens)
	for start := 0; start < len(ids); start += c.maxTokens {
		end := start + c.maxTokens
		if end > len(ids) {
			end = len(ids)
		}
		piece, err := c.codec.Decode(ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("decode tokens %d..%d: %w", start, end, err)
		}
		chunks = append(chunks, piece)
	}
	return chunks, nil
}
