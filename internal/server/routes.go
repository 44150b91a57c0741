package server

import (
	"github.com/graphloom/loom/internal/server/middleware"
	"github.com/graphloom/loom/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Document routes
	apiRoutes.POST("/documents", routes.UploadDocumentHandler, middleware.RequireRole("editor"))
	apiRoutes.GET("/documents/:id", routes.GetDocumentHandler)
	apiRoutes.DELETE("/documents/:id", routes.DeleteDocumentHandler, middleware.RequireRole("editor"))

	// Query routes
	apiRoutes.POST("/query", routes.QueryGraphHandler)

	// Node routes
	apiRoutes.GET("/nodes/:id", routes.GetNodeHandler)
	apiRoutes.PATCH("/nodes/:id", routes.PatchNodeHandler, middleware.RequireRole("editor"))
	apiRoutes.DELETE("/nodes/:id", routes.DeleteNodeHandler, middleware.RequireRole("editor"))

	// Edge routes
	apiRoutes.POST("/edges", routes.CreateEdgeHandler, middleware.RequireRole("editor"))
	apiRoutes.PATCH("/edges", routes.PatchEdgeHandler, middleware.RequireRole("editor"))
	apiRoutes.DELETE("/edges", routes.DeleteEdgeHandler, middleware.RequireRole("editor"))

	// Graph routes
	apiRoutes.GET("/graph/stats", routes.GetGraphStatsHandler)
}
