// Package worker runs the background correction loop: claim a pending
// document, download and extract its text, run the correction pipeline, and
// commit the result.
package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"redline/api/internal/correct"
	"redline/api/internal/diff"
	"redline/api/internal/extract"
	"redline/api/internal/search"
	"redline/api/internal/store"
)

// Store is the subset of document storage the worker needs.
type Store interface {
	ClaimPending(ctx context.Context) (*store.Document, error)
	IsCancellationRequested(ctx context.Context, documentID string) (bool, error)
	MarkCanceled(ctx context.Context, documentID string) error
	MarkFailed(ctx context.Context, documentID string) error
	ReleaseClaim(ctx context.Context, documentID string) error
	CompleteCorrection(ctx context.Context, documentID, extractedText, correctedText, highlightedText string) error
}

// ObjectStorage fetches the raw uploaded bytes.
type ObjectStorage interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// Corrector runs the full chunked correction for one document's text.
type Corrector interface {
	CorrectDocument(ctx context.Context, text string, isCancelled func() bool) (string, error)
}

// StatusCache drops stale job status entries after a state change.
type StatusCache interface {
	Invalidate(ctx context.Context, documentID string) error
}

// Indexer pushes finished documents into the search index.
type Indexer interface {
	IndexDocument(doc search.DocumentRecord)
}

type Worker struct {
	store        Store
	storage      ObjectStorage
	corrector    Corrector
	pollInterval time.Duration

	// optional collaborators, nil when not configured
	Cache  StatusCache
	Search Indexer

	extractFn   func(data []byte, fileType string) (string, error)
	highlightFn func(original, corrected string) string
}

func New(st Store, storage ObjectStorage, corrector Corrector, pollInterval time.Duration) *Worker {
	return &Worker{
		store:        st,
		storage:      storage,
		corrector:    corrector,
		pollInterval: pollInterval,
		extractFn:    extract.Text,
		highlightFn:  diff.Highlight,
	}
}

// Run polls for pending documents until the context is canceled. The loop
// sleeps pollInterval only when the queue is empty, so a backlog drains at
// full speed.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("worker: started, poll interval %s", w.pollInterval)
	for {
		processed, err := w.RunOnce(ctx)
		if err != nil {
			log.Printf("worker: %v", err)
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			log.Println("worker: stopping")
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// RunOnce claims and processes at most one pending document. It reports
// whether a document was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	doc, err := w.store.ClaimPending(ctx)
	if err != nil {
		return false, err
	}
	if doc == nil {
		return false, nil
	}

	w.process(ctx, *doc)
	return true, nil
}

func (w *Worker) process(ctx context.Context, doc store.Document) {
	log.Printf("worker: processing document %s (%s)", doc.ID, doc.FileName)

	// cancellation requested before the claim
	if doc.CancellationRequested {
		w.cancel(ctx, doc.ID)
		return
	}

	data, err := w.storage.Download(ctx, doc.StoragePath)
	if err != nil {
		w.fail(ctx, doc.ID, err)
		return
	}

	extracted, err := w.extractFn(data, doc.FileType)
	if err != nil {
		w.fail(ctx, doc.ID, err)
		return
	}

	// later cycles (resubmission, rollback) correct the current text;
	// the first cycle corrects what was just extracted
	source := doc.CurrentText
	if source == "" {
		source = extracted
	}

	isCancelled := func() bool {
		requested, err := w.store.IsCancellationRequested(ctx, doc.ID)
		if err != nil {
			log.Printf("worker: read cancellation flag for %s: %v", doc.ID, err)
			return false
		}
		return requested
	}

	corrected, err := w.corrector.CorrectDocument(ctx, source, isCancelled)
	if errors.Is(err, correct.ErrCanceled) {
		w.cancel(ctx, doc.ID)
		return
	}
	if err != nil {
		w.fail(ctx, doc.ID, err)
		return
	}

	// last flag check before the commit point
	if isCancelled() {
		w.cancel(ctx, doc.ID)
		return
	}

	highlighted := w.highlightFn(source, corrected)
	if err := w.store.CompleteCorrection(context.WithoutCancel(ctx), doc.ID, extracted, corrected, highlighted); err != nil {
		w.fail(ctx, doc.ID, err)
		return
	}

	w.invalidate(ctx, doc.ID)
	if w.Search != nil {
		w.Search.IndexDocument(search.DocumentRecord{
			ID:     doc.ID,
			Title:  doc.Title,
			Body:   corrected,
			Status: string(store.StatusComplete),
		})
	}
	log.Printf("worker: document %s corrected, %d chars", doc.ID, len(corrected))
}

// Status writes below run on a detached context: a worker shutting down must
// still be able to record where the document landed.

func (w *Worker) cancel(ctx context.Context, documentID string) {
	ctx = context.WithoutCancel(ctx)
	if err := w.store.MarkCanceled(ctx, documentID); err != nil {
		log.Printf("worker: mark canceled %s: %v", documentID, err)
	} else {
		log.Printf("worker: document %s canceled", documentID)
	}
	w.invalidate(ctx, documentID)
}

func (w *Worker) fail(ctx context.Context, documentID string, cause error) {
	if ctx.Err() != nil {
		// worker shutdown, not a document failure: hand the claim back so
		// the next run retries instead of stranding the document
		w.release(ctx, documentID)
		return
	}
	log.Printf("worker: document %s failed: %v", documentID, cause)
	if err := w.store.MarkFailed(context.WithoutCancel(ctx), documentID); err != nil {
		log.Printf("worker: mark failed %s: %v", documentID, err)
	}
	w.invalidate(context.WithoutCancel(ctx), documentID)
}

func (w *Worker) release(ctx context.Context, documentID string) {
	ctx = context.WithoutCancel(ctx)
	if err := w.store.ReleaseClaim(ctx, documentID); err != nil {
		log.Printf("worker: release claim %s: %v", documentID, err)
	} else {
		log.Printf("worker: document %s released back to pending", documentID)
	}
	w.invalidate(ctx, documentID)
}

func (w *Worker) invalidate(ctx context.Context, documentID string) {
	if w.Cache == nil {
		return
	}
	if err := w.Cache.Invalidate(ctx, documentID); err != nil {
		log.Printf("worker: invalidate status cache for %s: %v", documentID, err)
	}
}
