package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier with a type prefix, e.g. "doc_3f2a...".
// The prefix makes IDs self-describing in logs and storage paths.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
