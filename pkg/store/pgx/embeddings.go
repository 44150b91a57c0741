package pgx

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/logger"
)

type embeddingClient interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
}

type embeddingBatcher interface {
	GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error)
}

func generateEmbeddings(
	ctx context.Context,
	client embeddingClient,
	inputs [][]byte,
) ([][]float32, error) {
	if client == nil {
		return nil, fmt.Errorf("ai client is nil")
	}
	if len(inputs) == 0 {
		return nil, nil
	}
	if b, ok := client.(embeddingBatcher); ok {
		return b.GenerateEmbeddings(ctx, inputs)
	}

	out := make([][]float32, len(inputs))

	eg, ectx := errgroup.WithContext(ctx)
	for i := range inputs {
		idx := i
		in := inputs[i]
		eg.Go(func() error {
			emb, err := client.GenerateEmbedding(ectx, in)
			if err != nil {
				return err
			}
			out[idx] = emb
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// embeddingText is what gets embedded per node: the display name plus the
// supporting descriptions the extractor recorded.
func embeddingText(node common.Node) []byte {
	text := node.Name
	for _, prov := range node.Provenance {
		if prov.Description != "" {
			text += "\n" + prov.Description
		}
	}
	return []byte(text)
}

// UpsertNodeEmbeddings (re)indexes embeddings for the given nodes so they
// are reachable through semantic seed lookup when keyword matching comes up
// empty.
func (s *SnapshotDBStore) UpsertNodeEmbeddings(
	ctx context.Context,
	nodes []common.Node,
	client embeddingClient,
) error {
	if len(nodes) == 0 {
		return nil
	}

	inputs := make([][]byte, len(nodes))
	for i := range nodes {
		inputs[i] = embeddingText(nodes[i])
	}
	logger.Debug("[Store] Generating node embeddings", "count", len(inputs))
	embeddings, err := generateEmbeddings(ctx, client, inputs)
	if err != nil {
		return fmt.Errorf("failed to generate node embeddings: %w", err)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return common.NewPersistenceError("failed to begin embedding transaction", err)
	}
	defer tx.Rollback(ctx)

	for i, node := range nodes {
		_, err := tx.Exec(ctx, `
			INSERT INTO node_embeddings (node_id, name, embedding, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (node_id)
			DO UPDATE SET name = EXCLUDED.name,
			              embedding = EXCLUDED.embedding,
			              updated_at = now()
		`, node.ID, node.Name, pgvector.NewVector(embeddings[i]))
		if err != nil {
			return common.NewPersistenceError("failed to upsert node embedding", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return common.NewPersistenceError("failed to commit embedding transaction", err)
	}
	return nil
}

// DeleteNodeEmbedding drops the index entry of a deleted node.
func (s *SnapshotDBStore) DeleteNodeEmbedding(ctx context.Context, nodeID string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM node_embeddings WHERE node_id = $1`, nodeID)
	if err != nil {
		return common.NewPersistenceError("failed to delete node embedding", err)
	}
	return nil
}

// SimilarNodeIDs returns node ids ordered by cosine distance to the given
// embedding, filtered to matches above the similarity threshold.
func (s *SnapshotDBStore) SimilarNodeIDs(
	ctx context.Context,
	embedding []float32,
	limit int32,
	threshold float64,
) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT node_id
		FROM node_embeddings
		WHERE 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(embedding), limit, threshold)
	if err != nil {
		return nil, common.NewPersistenceError("failed to query similar nodes", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, common.NewPersistenceError("failed to scan similar node row", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewPersistenceError("failed to read similar node rows", err)
	}
	return ids, nil
}
