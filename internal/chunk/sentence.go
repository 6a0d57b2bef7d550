package chunk

import (
	"fmt"
	"strings"
)

// SentenceChunker is a character-budget fallback used when no tokenizer is
// available for the configured model. It prefers paragraph boundaries, then
// sentence boundaries, and force-splits only when a single sentence exceeds
// the budget.
type SentenceChunker struct {
	maxChars int
}

func NewSentenceChunker(maxChars int) (*SentenceChunker, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("max chars must be positive, got %d", maxChars)
	}
	return &SentenceChunker{maxChars: maxChars}, nil
}

func (c *SentenceChunker) Split(text string) ([]string, error) {
	if len(text) <= c.maxChars {
		return []string{text}, nil
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, part := range splitKeepSep(text, "\n\n") {
		if current.Len()+len(part) <= c.maxChars {
			current.WriteString(part)
			continue
		}
		flush()
		if len(part) <= c.maxChars {
			current.WriteString(part)
			continue
		}
		for _, sentence := range splitSentences(part) {
			if current.Len()+len(sentence) > c.maxChars {
				flush()
			}
			for len(sentence) > c.maxChars {
				chunks = append(chunks, sentence[:c.maxChars])
				sentence = sentence[c.maxChars:]
			}
			current.WriteString(sentence)
		}
	}
	flush()
	return chunks, nil
}

// splitKeepSep splits on sep but keeps the separator attached to the
// preceding piece, so joining the pieces reproduces the input.
func splitKeepSep(text, sep string) []string {
	var parts []string
	for {
		i := strings.Index(text, sep)
		if i < 0 {
			if text != "" {
				parts = append(parts, text)
			}
			return parts
		}
		parts = append(parts, text[:i+len(sep)])
		text = text[i+len(sep):]
	}
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			end := i + 1
			for end < len(text) && (text[end] == ' ' || text[end] == '\n') {
				end++
			}
			sentences = append(sentences, text[start:end])
			start = end
			i = end - 1
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}
