package store

import "time"

// Document is a proofreading subject. OriginalText is set once, on the first
// successful correction cycle, and never changes afterwards; CurrentText is
// replaced by each successful correction or rollback.
type Document struct {
	ID                    string
	Title                 string
	FileName              string
	FileType              string
	StoragePath           string
	Status                Status
	CancellationRequested bool
	VersionNumber         int
	OriginalText          string
	CurrentText           string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CorrectionLogEntry is one completed correction cycle. Entries are append-only
// and totally ordered by creation time; the Nth entry (1-based) is version N.
type CorrectionLogEntry struct {
	ID              int64
	DocumentID      string
	CorrectedText   string
	HighlightedText string
	CreatedAt       time.Time
}
