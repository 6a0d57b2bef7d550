package correct

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 2

type chunkSplitter interface {
	Split(text string) ([]string, error)
}

type chunkCorrector interface {
	CorrectChunk(ctx context.Context, chunk string) (string, error)
}

// Orchestrator runs a full document correction: split into chunks, correct
// them in small concurrent batches, and reassemble in order.
type Orchestrator struct {
	splitter  chunkSplitter
	client    chunkCorrector
	batchSize int
}

func NewOrchestrator(splitter chunkSplitter, client chunkCorrector) *Orchestrator {
	return &Orchestrator{
		splitter:  splitter,
		client:    client,
		batchSize: defaultBatchSize,
	}
}

// CorrectDocument corrects text chunk by chunk. isCancelled is polled between
// batches; once it reports true, no further chunks are sent and ErrCanceled
// is returned. Corrected chunks are joined in their original order.
func (o *Orchestrator) CorrectDocument(ctx context.Context, text string, isCancelled func() bool) (string, error) {
	chunks, err := o.splitter.Split(text)
	if err != nil {
		return "", fmt.Errorf("split document: %w", err)
	}

	if len(chunks) == 1 {
		if isCancelled != nil && isCancelled() {
			return "", ErrCanceled
		}
		return o.client.CorrectChunk(ctx, chunks[0])
	}

	log.Printf("correct: document split into %d chunks, batch size %d", len(chunks), o.batchSize)

	corrected := make([]string, len(chunks))
	for start := 0; start < len(chunks); start += o.batchSize {
		if isCancelled != nil && isCancelled() {
			log.Printf("correct: cancellation requested, stopping after %d of %d chunks", start, len(chunks))
			return "", ErrCanceled
		}

		end := start + o.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				result, err := o.client.CorrectChunk(gctx, chunks[i])
				if err != nil {
					return fmt.Errorf("chunk %d: %w", i+1, err)
				}
				corrected[i] = result
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
	}

	return strings.Join(corrected, "\n"), nil
}
