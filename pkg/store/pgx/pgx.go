package pgx

import (
	"context"
	"errors"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/logger"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// SnapshotDBStore persists graph snapshots to PostgreSQL and maintains a
// pgvector index of node embeddings for semantic seed lookup. The connection
// is owned by the caller; Close does not close it.
//
// A SnapshotDBStore should be created using NewSnapshotDBStore.
type SnapshotDBStore struct {
	conn pgxIConn
	keep int
}

// NewSnapshotDBStoreParams defines the configuration for creating a
// SnapshotDBStore. Keep bounds how many snapshot rows survive pruning; zero
// keeps the last 10.
type NewSnapshotDBStoreParams struct {
	Conn pgxIConn
	Keep int
}

// NewSnapshotDBStore creates a SnapshotDBStore on an existing connection or
// pool.
func NewSnapshotDBStore(params NewSnapshotDBStoreParams) *SnapshotDBStore {
	keep := params.Keep
	if keep <= 0 {
		keep = 10
	}
	return &SnapshotDBStore{conn: params.Conn, keep: keep}
}

// Persist stores one serialized snapshot row. Re-writing an existing
// revision is a no-op, so persister retries are safe. Older rows beyond the
// retention window are pruned in the same transaction.
func (s *SnapshotDBStore) Persist(ctx context.Context, revision uint64, data []byte) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return common.NewPersistenceError("failed to begin snapshot transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO graph_snapshots (revision, data)
		VALUES ($1, $2)
		ON CONFLICT (revision) DO NOTHING
	`, int64(revision), data)
	if err != nil {
		return common.NewPersistenceError("failed to insert snapshot", err)
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM graph_snapshots
		WHERE revision NOT IN (
			SELECT revision FROM graph_snapshots ORDER BY revision DESC LIMIT $1
		)
	`, s.keep)
	if err != nil {
		return common.NewPersistenceError("failed to prune snapshots", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return common.NewPersistenceError("failed to commit snapshot transaction", err)
	}

	logger.Debug("[Store] Snapshot row written", "revision", revision, "bytes", len(data))
	return nil
}

// LoadLatest returns the newest snapshot row.
func (s *SnapshotDBStore) LoadLatest(ctx context.Context) ([]byte, uint64, error) {
	var revision int64
	var data []byte
	err := s.conn.QueryRow(ctx, `
		SELECT revision, data FROM graph_snapshots
		ORDER BY revision DESC LIMIT 1
	`).Scan(&revision, &data)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, 0, common.NewNotFoundError("no snapshot stored")
		}
		return nil, 0, common.NewPersistenceError("failed to load snapshot", err)
	}
	return data, uint64(revision), nil
}

// Close is a no-op; the caller owns the connection pool.
func (s *SnapshotDBStore) Close() error {
	return nil
}
