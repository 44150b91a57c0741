package server

import (
	"context"
	"fmt"

	"github.com/graphloom/loom/internal/util"
	"github.com/graphloom/loom/pkg/store"
	"github.com/graphloom/loom/pkg/store/file"
	neo4jstore "github.com/graphloom/loom/pkg/store/neo4j"
	pgxstore "github.com/graphloom/loom/pkg/store/pgx"
)

// NewSnapshotStoreFromEnv selects the durable snapshot backend by
// SNAPSHOT_BACKEND. Postgres is the default; file and neo4j are the
// alternatives. The document registry and embedding index stay in Postgres
// either way.
func NewSnapshotStoreFromEnv(ctx context.Context, db *pgxstore.SnapshotDBStore) (store.SnapshotStore, error) {
	backend := util.GetEnvString("SNAPSHOT_BACKEND", "pgx")
	switch backend {
	case "pgx":
		return db, nil
	case "file":
		return file.NewFileStore(file.NewFileStoreParams{
			Path: util.GetEnvString("SNAPSHOT_PATH", "data/graph.snapshot"),
		})
	case "neo4j":
		return neo4jstore.NewNeo4jStore(ctx, neo4jstore.NewNeo4jStoreParams{
			URI:      util.GetEnv("NEO4J_URI"),
			Username: util.GetEnv("NEO4J_USER"),
			Password: util.GetEnv("NEO4J_PASSWORD"),
		})
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", backend)
	}
}
