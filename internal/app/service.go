// Package app wires the document proofreading API together: uploads, job
// status polling, cancellation, rollback, and search.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"redline/api/internal/diff"
	"redline/api/internal/extract"
	"redline/api/internal/jobcache"
	"redline/api/internal/search"
	"redline/api/internal/store"
	"redline/api/internal/util"
)

// maxUploadBytes caps document uploads at 20 MiB.
const maxUploadBytes = 20 << 20

type dataStore interface {
	InsertDocument(context.Context, store.Document) error
	GetDocument(context.Context, string) (store.Document, error)
	ListDocuments(context.Context) ([]store.Document, error)
	RequestCancellation(context.Context, string) (bool, error)
	Resubmit(context.Context, string) (bool, error)
	ListCorrectionLog(context.Context, string) ([]store.CorrectionLogEntry, error)
	LatestCorrectionLogEntry(context.Context, string) (*store.CorrectionLogEntry, error)
	RollbackCurrentText(context.Context, string, string) (bool, error)
	Ping(context.Context) error
}

type objectStorage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
}

type statusCache interface {
	Get(ctx context.Context, documentID string) (*jobcache.JobStatus, error)
	Set(ctx context.Context, documentID string, status jobcache.JobStatus) error
	Invalidate(ctx context.Context, documentID string) error
}

type Service struct {
	store   dataStore
	storage objectStorage
	search  *search.Service

	// optional, nil when Redis is not configured
	cache statusCache
}

func NewService(st dataStore, storage objectStorage, searchSvc *search.Service) *Service {
	return &Service{store: st, storage: storage, search: searchSvc}
}

// SetStatusCache enables the Redis-backed job status cache.
func (s *Service) SetStatusCache(cache statusCache) {
	s.cache = cache
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap runs startup work that needs the full stack: backfilling the
// search index from Postgres.
func (s *Service) Bootstrap(ctx context.Context) {
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
}

var contentTypes = map[string]string{
	"txt":  "text/plain",
	"md":   "text/markdown",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"pdf":  "application/pdf",
}

// CreateDocument stores an upload and queues it for correction.
func (s *Service) CreateDocument(ctx context.Context, title, fileName string, data []byte) (map[string]any, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file name is required", nil)
	}
	if len(data) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "uploaded file is empty", nil)
	}
	if len(data) > maxUploadBytes {
		return nil, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "uploaded file exceeds 20 MiB", nil)
	}

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if !extract.Supported(fileType) {
		return nil, domainError(http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE",
			fmt.Sprintf("file type %q is not supported", fileType), nil)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}

	doc := store.Document{
		ID:          util.NewID("doc"),
		Title:       title,
		FileName:    fileName,
		FileType:    fileType,
		StoragePath: "",
		Status:      store.StatusPending,
	}
	doc.StoragePath = doc.ID + "/" + fileName

	contentType := contentTypes[fileType]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.storage.Upload(ctx, doc.StoragePath, data, contentType); err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}

	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	if s.search != nil {
		s.search.IndexDocument(search.DocumentRecord{
			ID:     doc.ID,
			Title:  doc.Title,
			Status: string(doc.Status),
		})
	}

	log.Printf("app: document %s created (%s, %d bytes)", doc.ID, fileName, len(data))
	return map[string]any{"document": documentSummary(doc)}, nil
}

func (s *Service) ListDocuments(ctx context.Context) (map[string]any, error) {
	items, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	summaries := make([]map[string]any, 0, len(items))
	for _, item := range items {
		summaries = append(summaries, documentSummary(item))
	}
	return map[string]any{"documents": summaries}, nil
}

// GetDocumentView returns a document with its texts. The highlighted view is
// recomputed from the original against the current text, so it stays accurate
// after rollbacks.
func (s *Service) GetDocumentView(ctx context.Context, documentID string) (map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	view := documentSummary(doc)
	view["originalText"] = doc.OriginalText
	view["currentText"] = doc.CurrentText
	if doc.VersionNumber > 0 {
		view["highlightedText"] = diff.Highlight(doc.OriginalText, doc.CurrentText)
	} else {
		view["highlightedText"] = ""
	}
	return map[string]any{"document": view}, nil
}

// JobStatus returns the correction job state for polling clients, served from
// the short-lived cache when possible.
func (s *Service) JobStatus(ctx context.Context, documentID string) (map[string]any, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, documentID)
		if err != nil {
			log.Printf("app: job status cache read for %s: %v", documentID, err)
		} else if cached != nil {
			return jobStatusPayload(documentID, *cached), nil
		}
	}

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	status := jobcache.JobStatus{
		Status:                string(doc.Status),
		CancellationRequested: doc.CancellationRequested,
		VersionNumber:         doc.VersionNumber,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, documentID, status); err != nil {
			log.Printf("app: job status cache write for %s: %v", documentID, err)
		}
	}
	return jobStatusPayload(documentID, status), nil
}

// RequestCorrection queues a new correction cycle for a terminal document.
func (s *Service) RequestCorrection(ctx context.Context, documentID string) (map[string]any, error) {
	ok, err := s.store.Resubmit(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("request correction: %w", err)
	}
	if !ok {
		doc, err := s.store.GetDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		return nil, domainError(http.StatusConflict, "CORRECTION_ACTIVE",
			fmt.Sprintf("document is %s; a new correction can only start from a finished state", doc.Status), nil)
	}

	s.invalidateStatus(ctx, documentID)
	log.Printf("app: document %s queued for correction", documentID)
	return map[string]any{"documentId": documentID, "status": string(store.StatusPending)}, nil
}

// RequestCancellation flags an active correction for cooperative cancellation.
// The worker observes the flag between batches; the status changes once it
// does.
func (s *Service) RequestCancellation(ctx context.Context, documentID string) (map[string]any, error) {
	ok, err := s.store.RequestCancellation(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("request cancellation: %w", err)
	}
	if !ok {
		doc, err := s.store.GetDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		return nil, domainError(http.StatusConflict, "NOT_ACTIVE",
			fmt.Sprintf("document is %s; only pending or in-progress corrections can be canceled", doc.Status), nil)
	}

	s.invalidateStatus(ctx, documentID)
	log.Printf("app: cancellation requested for document %s", documentID)
	return map[string]any{"documentId": documentID, "cancellationRequested": true}, nil
}

// Rollback rewinds the current text to the original upload or the most recent
// correction, then re-queues the document for a fresh cycle.
func (s *Service) Rollback(ctx context.Context, documentID, target string) (map[string]any, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == store.StatusInProgress {
		return nil, domainError(http.StatusConflict, "CORRECTION_ACTIVE",
			"cannot roll back while a correction is running", nil)
	}
	if doc.VersionNumber == 0 {
		return nil, domainError(http.StatusConflict, "NO_VERSIONS",
			"document has no corrected versions to roll back", nil)
	}

	var text string
	switch target {
	case "original":
		text = doc.OriginalText
	case "previous":
		entry, err := s.store.LatestCorrectionLogEntry(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("rollback: %w", err)
		}
		if entry == nil {
			return nil, domainError(http.StatusConflict, "NO_VERSIONS",
				"document has no corrected versions to roll back", nil)
		}
		text = entry.CorrectedText
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			`target must be "original" or "previous"`, nil)
	}

	ok, err := s.store.RollbackCurrentText(ctx, documentID, text)
	if err != nil {
		return nil, fmt.Errorf("rollback: %w", err)
	}
	if !ok {
		return nil, domainError(http.StatusConflict, "CORRECTION_ACTIVE",
			"cannot roll back while a correction is running", nil)
	}

	s.invalidateStatus(ctx, documentID)
	log.Printf("app: document %s rolled back to %s", documentID, target)
	return map[string]any{"documentId": documentID, "target": target, "status": string(store.StatusPending)}, nil
}

// ListVersions returns the correction history, oldest first, numbered from 1.
func (s *Service) ListVersions(ctx context.Context, documentID string) (map[string]any, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListCorrectionLog(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	versions := make([]map[string]any, 0, len(entries))
	for i, entry := range entries {
		versions = append(versions, map[string]any{
			"version":         i + 1,
			"correctedText":   entry.CorrectedText,
			"highlightedText": entry.HighlightedText,
			"createdAt":       entry.CreatedAt,
		})
	}
	return map[string]any{"documentId": documentID, "versions": versions}, nil
}

// Search runs a full-text query over documents.
func (s *Service) Search(ctx context.Context, text, filterStatus string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:         text,
		FilterStatus: filterStatus,
		Limit:        limit,
		Offset:       offset,
	}), nil
}

func (s *Service) invalidateStatus(ctx context.Context, documentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, documentID); err != nil {
		log.Printf("app: invalidate status cache for %s: %v", documentID, err)
	}
}

func documentSummary(doc store.Document) map[string]any {
	return map[string]any{
		"id":                    doc.ID,
		"title":                 doc.Title,
		"fileName":              doc.FileName,
		"fileType":              doc.FileType,
		"status":                string(doc.Status),
		"cancellationRequested": doc.CancellationRequested,
		"versionNumber":         doc.VersionNumber,
		"createdAt":             doc.CreatedAt,
		"updatedAt":             doc.UpdatedAt,
	}
}

func jobStatusPayload(documentID string, status jobcache.JobStatus) map[string]any {
	return map[string]any{
		"documentId":            documentID,
		"status":                status.Status,
		"cancellationRequested": status.CancellationRequested,
		"versionNumber":         status.VersionNumber,
	}
}
