package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/graphloom/loom/internal/server/middleware"
)

// GetGraphStatsHandler reports the size and composition of the current
// snapshot: totals plus node counts by entity type and edge counts by
// relation label.
func GetGraphStatsHandler(c echo.Context) error {
	type graphStatsResponse struct {
		Message     string         `json:"message"`
		Revision    uint64         `json:"revision"`
		NodeCount   int            `json:"node_count"`
		EdgeCount   int            `json:"edge_count"`
		NodesByType map[string]int `json:"nodes_by_type"`
		EdgesByType map[string]int `json:"edges_by_type"`
	}

	snap := c.(*middleware.AppContext).App.Store.Snapshot()

	nodesByType := make(map[string]int)
	for _, node := range snap.Nodes() {
		nodesByType[node.Type.String()]++
	}
	edgesByType := make(map[string]int)
	for _, edge := range snap.Edges() {
		edgesByType[edge.Label]++
	}

	return c.JSON(http.StatusOK, graphStatsResponse{
		Message:     "Graph statistics",
		Revision:    snap.Revision(),
		NodeCount:   snap.NodeCount(),
		EdgeCount:   snap.EdgeCount(),
		NodesByType: nodesByType,
		EdgesByType: edgesByType,
	})
}
