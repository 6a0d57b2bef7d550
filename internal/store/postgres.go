package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const documentColumns = `id, title, file_name, file_type, storage_path, status, cancellation_requested, version_number, original_text, current_text, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var item Document
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.FileName,
		&item.FileType,
		&item.StoragePath,
		&item.Status,
		&item.CancellationRequested,
		&item.VersionNumber,
		&item.OriginalText,
		&item.CurrentText,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, file_name, file_type, storage_path, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.Title, item.FileName, item.FileType, item.StoragePath, item.Status)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id=$1
	`, documentID)
	return scanDocument(row)
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

// ClaimPending atomically moves the oldest pending document to in-progress and
// returns it. Returns nil when no pending document exists. FOR UPDATE SKIP
// LOCKED keeps concurrent workers from claiming the same row.
func (s *PostgresStore) ClaimPending(ctx context.Context) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE documents
		SET status='in-progress', updated_at=NOW()
		WHERE id = (
			SELECT id FROM documents
			WHERE status='pending'
			ORDER BY updated_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+documentColumns+`
	`)
	item, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending document: %w", err)
	}
	return &item, nil
}

// TransitionStatus performs a guarded status move. It reports false when the
// document was not in the expected state (somebody else moved it first).
func (s *PostgresStore) TransitionStatus(ctx context.Context, documentID string, from, to Status) (bool, error) {
	if !CanTransition(from, to) {
		return false, fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status=$3, updated_at=NOW()
		WHERE id=$1 AND status=$2
	`, documentID, from, to)
	if err != nil {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows affected: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, documentID string) error {
	ok, err := s.TransitionStatus(ctx, documentID, StatusInProgress, StatusFailed)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("mark failed: document %s is not in-progress", documentID)
	}
	return nil
}

func (s *PostgresStore) MarkCanceled(ctx context.Context, documentID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status='canceled', updated_at=NOW()
		WHERE id=$1 AND status IN ('pending', 'in-progress')
	`, documentID)
	if err != nil {
		return fmt.Errorf("mark canceled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark canceled rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark canceled: document %s is not active", documentID)
	}
	return nil
}

// ReleaseClaim hands an in-progress document back to the queue. Used when a
// worker shuts down mid-correction: the claim is reversed rather than the
// document moved to a terminal state, so the next worker run picks it up.
func (s *PostgresStore) ReleaseClaim(ctx context.Context, documentID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status='pending', updated_at=NOW()
		WHERE id=$1 AND status='in-progress'
	`, documentID)
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release claim rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("release claim: document %s is not in-progress", documentID)
	}
	return nil
}

// RequestCancellation sets the cooperative cancellation flag. It never touches
// the status; the worker observes the flag between pipeline steps.
func (s *PostgresStore) RequestCancellation(ctx context.Context, documentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET cancellation_requested=TRUE, updated_at=NOW()
		WHERE id=$1 AND status IN ('pending', 'in-progress')
	`, documentID)
	if err != nil {
		return false, fmt.Errorf("request cancellation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("request cancellation rows affected: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) IsCancellationRequested(ctx context.Context, documentID string) (bool, error) {
	var requested bool
	err := s.db.QueryRowContext(ctx, `SELECT cancellation_requested FROM documents WHERE id=$1`, documentID).Scan(&requested)
	if err != nil {
		return false, fmt.Errorf("read cancellation flag: %w", err)
	}
	return requested, nil
}

// Resubmit starts a fresh correction cycle for a terminal document: status back
// to pending, cancellation flag cleared. Reports false when the document is not
// in the expected terminal (or never-run pending-eligible) state.
func (s *PostgresStore) Resubmit(ctx context.Context, documentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status='pending', cancellation_requested=FALSE, updated_at=NOW()
		WHERE id=$1 AND status IN ('complete', 'failed', 'canceled')
	`, documentID)
	if err != nil {
		return false, fmt.Errorf("resubmit document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resubmit rows affected: %w", err)
	}
	return affected == 1, nil
}

// CompleteCorrection is the commit point of a correction cycle: append the log
// entry, pin original_text on the first cycle, replace current_text, bump the
// version counter and land on complete - all in one transaction. A cancellation
// flag that arrived too late to be honored is cleared here, so a complete
// document never reports a dangling request. Fails when the worker no longer
// holds the in-progress claim.
func (s *PostgresStore) CompleteCorrection(ctx context.Context, documentID, extractedText, correctedText, highlightedText string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin correction tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO correction_log (document_id, corrected_text, highlighted_text)
		VALUES ($1, $2, $3)
	`, documentID, correctedText, highlightedText); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("append correction log: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET original_text = CASE WHEN original_text = '' THEN $2 ELSE original_text END,
			current_text = $3,
			version_number = version_number + 1,
			status = 'complete',
			cancellation_requested = FALSE,
			updated_at = NOW()
		WHERE id=$1 AND status='in-progress'
	`, documentID, extractedText, correctedText)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("commit correction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("commit correction rows affected: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("commit correction: document %s is not in-progress", documentID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit correction tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCorrectionLog(ctx context.Context, documentID string) ([]CorrectionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, corrected_text, highlighted_text, created_at
		FROM correction_log
		WHERE document_id=$1
		ORDER BY created_at ASC, id ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list correction log: %w", err)
	}
	defer rows.Close()

	entries := make([]CorrectionLogEntry, 0)
	for rows.Next() {
		var entry CorrectionLogEntry
		if err := rows.Scan(&entry.ID, &entry.DocumentID, &entry.CorrectedText, &entry.HighlightedText, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan correction log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate correction log: %w", err)
	}
	return entries, nil
}

// LatestCorrectionLogEntry returns the most recent entry, or nil when the
// document has never completed a correction.
func (s *PostgresStore) LatestCorrectionLogEntry(ctx context.Context, documentID string) (*CorrectionLogEntry, error) {
	var entry CorrectionLogEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, corrected_text, highlighted_text, created_at
		FROM correction_log
		WHERE document_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, documentID).Scan(&entry.ID, &entry.DocumentID, &entry.CorrectedText, &entry.HighlightedText, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest correction log entry: %w", err)
	}
	return &entry, nil
}

// RollbackCurrentText rewinds current_text and re-queues the document. The
// caller decides the target text (original or a prior correction); log entries
// are never touched. The guard excludes in-progress documents so a rollback can
// never race an active worker's commit.
func (s *PostgresStore) RollbackCurrentText(ctx context.Context, documentID, text string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET current_text=$2, status='pending', cancellation_requested=FALSE, updated_at=NOW()
		WHERE id=$1 AND status <> 'in-progress'
	`, documentID, text)
	if err != nil {
		return false, fmt.Errorf("rollback current text: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rollback rows affected: %w", err)
	}
	return affected == 1, nil
}
