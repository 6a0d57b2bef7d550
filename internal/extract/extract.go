// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"fmt"
	"strings"
)

// UnsupportedTypeError marks a file type the extractor has no handler for.
type UnsupportedTypeError struct {
	FileType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q", e.FileType)
}

// Supported reports whether a file type can be extracted.
func Supported(fileType string) bool {
	switch normalizeType(fileType) {
	case "txt", "md", "docx", "pdf":
		return true
	}
	return false
}

// Text extracts plain text from document bytes, keyed by file type.
func Text(data []byte, fileType string) (string, error) {
	switch normalizeType(fileType) {
	case "txt", "md":
		return string(data), nil
	case "docx":
		return docxText(data)
	case "pdf":
		return pdfText(data)
	default:
		return "", &UnsupportedTypeError{FileType: fileType}
	}
}

func normalizeType(fileType string) string {
	t := strings.ToLower(strings.TrimSpace(fileType))
	switch t {
	case "text", "plain":
		return "txt"
	case "markdown":
		return "md"
	}
	return t
}
