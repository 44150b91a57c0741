package neo4j

import (
	"context"
	"encoding/json"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/graph"
	"github.com/graphloom/loom/pkg/logger"
)

// Neo4jStore persists snapshots to a Neo4j instance. Each write stores the
// raw snapshot payload on a :Snapshot node for exact restore and, in the
// same transaction, projects nodes and edges into :Entity nodes and :REL
// relationships so the graph can be explored in the Neo4j browser.
//
// A Neo4jStore should be created using NewNeo4jStore.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jStoreParams defines the connection settings for a Neo4jStore.
type NewNeo4jStoreParams struct {
	URI      string
	Username string
	Password string
}

// NewNeo4jStore connects to Neo4j and verifies connectivity.
func NewNeo4jStore(ctx context.Context, params NewNeo4jStoreParams) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(
		params.URI, neo4j.BasicAuth(params.Username, params.Password, ""))
	if err != nil {
		return nil, common.NewPersistenceError("failed to create neo4j driver", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, common.NewPersistenceError("failed to reach neo4j", err)
	}
	return &Neo4jStore{driver: driver}, nil
}

// Persist writes the snapshot payload and refreshes the browsable
// projection. Re-writing an existing revision is a no-op.
func (s *Neo4jStore) Persist(ctx context.Context, revision uint64, data []byte) error {
	var serialized graph.SerializedGraph
	if err := json.Unmarshal(data, &serialized); err != nil {
		return common.NewPersistenceError("snapshot payload is corrupt", err)
	}

	nodeRows := make([]map[string]any, len(serialized.Nodes))
	for i, node := range serialized.Nodes {
		nodeRows[i] = map[string]any{
			"id":   node.ID,
			"name": node.Name,
			"type": string(node.Type),
		}
	}
	edgeRows := make([]map[string]any, len(serialized.Edges))
	for i, edge := range serialized.Edges {
		edgeRows[i] = map[string]any{
			"source": edge.Source,
			"target": edge.Target,
			"label":  edge.Label,
			"weight": edge.Weight,
		}
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MERGE (s:Snapshot {revision: $revision})
			ON CREATE SET s.data = $data, s.created_at = datetime(), s.fresh = true
			ON MATCH SET s.fresh = false
			RETURN s.fresh AS fresh
		`, map[string]any{"revision": int64(revision), "data": string(data)})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		if fresh, _ := record.Get("fresh"); fresh == false {
			// Retry of an already stored revision.
			return nil, nil
		}

		// Rebuild the projection from scratch; the snapshot is the source
		// of truth, not the projected entities.
		if _, err := tx.Run(ctx, `MATCH (e:Entity) DETACH DELETE e`, nil); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx, `
			UNWIND $rows AS row
			CREATE (e:Entity {id: row.id, name: row.name, type: row.type})
		`, map[string]any{"rows": nodeRows}); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx, `
			UNWIND $rows AS row
			MATCH (a:Entity {id: row.source}), (b:Entity {id: row.target})
			CREATE (a)-[:REL {label: row.label, weight: row.weight}]->(b)
		`, map[string]any{"rows": edgeRows}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return common.NewPersistenceError("failed to write snapshot to neo4j", err)
	}

	logger.Debug("[Store] Snapshot written to neo4j",
		"revision", revision,
		"nodes", len(nodeRows),
		"edges", len(edgeRows),
	)
	return nil
}

// LoadLatest returns the payload of the newest :Snapshot node.
func (s *Neo4jStore) LoadLatest(ctx context.Context) ([]byte, uint64, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	value, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (s:Snapshot)
			RETURN s.revision AS revision, s.data AS data
			ORDER BY s.revision DESC LIMIT 1
		`, nil)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return records, nil
	})
	if err != nil {
		return nil, 0, common.NewPersistenceError("failed to load snapshot from neo4j", err)
	}

	records := value.([]*neo4j.Record)
	if len(records) == 0 {
		return nil, 0, common.NewNotFoundError("no snapshot stored")
	}
	revision, _ := records[0].Get("revision")
	data, _ := records[0].Get("data")
	return []byte(data.(string)), uint64(revision.(int64)), nil
}

// Close shuts down the underlying driver.
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}
