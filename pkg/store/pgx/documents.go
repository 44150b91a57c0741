package pgx

import (
	"context"
	"errors"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/graphloom/loom/pkg/common"
)

// DocumentStatus tracks a document through the ingest pipeline.
const (
	DocumentStatusQueued     = "queued"
	DocumentStatusProcessing = "processing"
	DocumentStatusIngested   = "ingested"
	DocumentStatusFailed     = "failed"
)

// DocumentRecord is the registry row of an uploaded document.
type DocumentRecord struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	ObjectKey  string     `json:"object_key"`
	Status     string     `json:"status"`
	IngestedAt *time.Time `json:"ingested_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreateDocument registers an uploaded document before its ingest job is
// queued.
func (s *SnapshotDBStore) CreateDocument(ctx context.Context, doc DocumentRecord) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO documents (id, title, object_key, status)
		VALUES ($1, $2, $3, $4)
	`, doc.ID, doc.Title, doc.ObjectKey, DocumentStatusQueued)
	if err != nil {
		return common.NewPersistenceError("failed to create document record", err)
	}
	return nil
}

// GetDocument returns one document registry row.
func (s *SnapshotDBStore) GetDocument(ctx context.Context, id string) (*DocumentRecord, error) {
	var doc DocumentRecord
	err := s.conn.QueryRow(ctx, `
		SELECT id, title, object_key, status, ingested_at, created_at
		FROM documents WHERE id = $1
	`, id).Scan(&doc.ID, &doc.Title, &doc.ObjectKey, &doc.Status, &doc.IngestedAt, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, common.NewNotFoundError("document %q not found", id)
		}
		return nil, common.NewPersistenceError("failed to load document record", err)
	}
	return &doc, nil
}

// SetDocumentStatus advances a document through the pipeline. Reaching the
// ingested state also stamps the ingestion time.
func (s *SnapshotDBStore) SetDocumentStatus(ctx context.Context, id, status string) error {
	var err error
	if status == DocumentStatusIngested {
		_, err = s.conn.Exec(ctx, `
			UPDATE documents SET status = $2, ingested_at = now() WHERE id = $1
		`, id, status)
	} else {
		_, err = s.conn.Exec(ctx, `
			UPDATE documents SET status = $2 WHERE id = $1
		`, id, status)
	}
	if err != nil {
		return common.NewPersistenceError("failed to update document status", err)
	}
	return nil
}

// DeleteDocument removes the registry row after a delete job completes.
func (s *SnapshotDBStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return common.NewPersistenceError("failed to delete document record", err)
	}
	return nil
}
