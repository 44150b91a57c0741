package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/graphloom/loom/internal/server/middleware"
	"github.com/graphloom/loom/pkg/common"
)

// GetNodeHandler returns one node plus its incident edges, read from a
// single snapshot.
func GetNodeHandler(c echo.Context) error {
	type getNodeParams struct {
		ID        string `param:"id" validate:"required"`
		Direction string `query:"direction"`
	}

	type getNodeResponse struct {
		Message  string        `json:"message"`
		Node     *common.Node  `json:"node,omitempty"`
		Edges    []common.Edge `json:"edges,omitempty"`
		Revision uint64        `json:"revision"`
	}

	params := new(getNodeParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getNodeResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getNodeResponse{
			Message: "Invalid request body",
		})
	}

	direction := common.Direction(params.Direction)
	switch direction {
	case common.DirectionIn, common.DirectionOut:
	default:
		direction = common.DirectionBoth
	}

	snap := c.(*middleware.AppContext).App.Store.Snapshot()

	node, err := snap.GetNode(params.ID)
	if err != nil {
		return c.JSON(statusForGraphError(err), getNodeResponse{
			Message:  errorMessage(err),
			Revision: snap.Revision(),
		})
	}

	edges, err := snap.GetEdges(params.ID, direction)
	if err != nil {
		return c.JSON(statusForGraphError(err), getNodeResponse{
			Message:  errorMessage(err),
			Revision: snap.Revision(),
		})
	}

	return c.JSON(http.StatusOK, getNodeResponse{
		Message:  "Node found",
		Node:     &node,
		Edges:    edges,
		Revision: snap.Revision(),
	})
}
