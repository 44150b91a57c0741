package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/graphloom/loom/internal/cache"
	"github.com/graphloom/loom/internal/metrics"
	"github.com/graphloom/loom/internal/server/middleware"
	"github.com/graphloom/loom/pkg/ai"
	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/logger"
)

const (
	defaultMaxHops  = 2
	defaultMaxNodes = 50

	semanticSeedLimit     = 5
	semanticSeedThreshold = 0.5
)

// QueryGraphHandler answers a natural-language question from the graph:
// keyword seeds plus bounded expansion select the context subgraph, the
// model writes the answer from that context alone. When no keyword seed
// matches, embedding similarity picks fallback seeds before giving up.
func QueryGraphHandler(c echo.Context) error {
	type queryGraphRequest struct {
		Question string   `json:"question" validate:"required"`
		Keywords []string `json:"keywords"`
		MaxHops  int      `json:"max_hops"`
		MaxNodes int      `json:"max_nodes"`
	}

	type queryGraphResponse struct {
		Message  string           `json:"message"`
		Answer   string           `json:"answer,omitempty"`
		Keywords []string         `json:"keywords,omitempty"`
		Subgraph *common.Subgraph `json:"subgraph,omitempty"`
		Revision uint64           `json:"revision"`
		Metrics  *ai.ModelMetrics `json:"metrics,omitempty"`
	}

	data := new(queryGraphRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryGraphResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryGraphResponse{
			Message: "Invalid request body",
		})
	}
	if data.MaxHops <= 0 {
		data.MaxHops = defaultMaxHops
	}
	if data.MaxNodes <= 0 {
		data.MaxNodes = defaultMaxNodes
	}

	start := time.Now()
	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	keywords := data.Keywords
	if len(keywords) == 0 {
		var extracted struct {
			Keywords []string `json:"keywords" jsonschema_description:"Search keywords extracted from the question"`
		}
		err := app.AiClient.GenerateCompletionWithFormat(
			ctx,
			"extract_keywords",
			"Search keywords for knowledge graph retrieval",
			fmt.Sprintf(ai.KeywordPrompt, data.Question),
			&extracted,
		)
		if err != nil || len(extracted.Keywords) == 0 {
			logger.Error("[Query] Keyword extraction failed", "err", err)
			metrics.QueryTotal.WithLabelValues("error").Inc()
			return c.JSON(http.StatusInternalServerError, queryGraphResponse{
				Message: "Internal server error",
			})
		}
		keywords = extracted.Keywords
	}

	revision := app.Store.Revision()
	cacheKey := cache.Key(revision, keywords, data.MaxHops, data.MaxNodes)

	sub := app.Cache.Get(ctx, cacheKey)
	if sub == nil {
		var err error
		sub, err = app.Planner.AnswerContext(ctx, keywords, data.MaxHops, data.MaxNodes)
		if err != nil {
			logger.Error("[Query] Context selection failed", "err", err)
			metrics.QueryTotal.WithLabelValues("error").Inc()
			return c.JSON(statusForGraphError(err), queryGraphResponse{
				Message: errorMessage(err),
			})
		}

		if sub.Empty {
			sub, err = semanticFallback(c, data.Question, data.MaxHops, data.MaxNodes)
			if err != nil {
				logger.Warn("[Query] Semantic fallback failed", "err", err)
				sub = &common.Subgraph{Empty: true}
			}
		}
		app.Cache.Set(ctx, cacheKey, sub)
	}

	if sub.Empty {
		metrics.QueryTotal.WithLabelValues("empty").Inc()
		metrics.QueryDuration.Observe(time.Since(start).Seconds())
		return c.JSON(http.StatusOK, queryGraphResponse{
			Message:  "No grounding found",
			Keywords: keywords,
			Subgraph: sub,
			Revision: revision,
		})
	}

	contextJSON, err := json.Marshal(sub)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, queryGraphResponse{
			Message: "Internal server error",
		})
	}

	answer, err := app.AiClient.GenerateCompletion(
		ctx,
		fmt.Sprintf(ai.AnswerPrompt, string(contextJSON), data.Question),
	)
	if err != nil || answer == "" {
		logger.Error("[Query] Answer generation failed", "err", err)
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return c.JSON(http.StatusInternalServerError, queryGraphResponse{
			Message: "Internal server error",
		})
	}

	metrics.QueryTotal.WithLabelValues("answered").Inc()
	metrics.QueryDuration.Observe(time.Since(start).Seconds())

	modelMetrics := app.AiClient.GetMetrics()
	return c.JSON(http.StatusOK, queryGraphResponse{
		Message:  "Query answered",
		Answer:   answer,
		Keywords: keywords,
		Subgraph: sub,
		Revision: revision,
		Metrics:  &modelMetrics,
	})
}

// semanticFallback seeds the expansion from the embedding index when no
// keyword matched a node.
func semanticFallback(c echo.Context, question string, maxHops, maxNodes int) (*common.Subgraph, error) {
	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	embedding, err := app.AiClient.GenerateEmbedding(ctx, []byte(question))
	if err != nil {
		return nil, err
	}

	seedIDs, err := app.DB.SimilarNodeIDs(ctx, embedding, semanticSeedLimit, semanticSeedThreshold)
	if err != nil {
		return nil, err
	}
	if len(seedIDs) == 0 {
		return &common.Subgraph{Empty: true}, nil
	}

	return app.Planner.ContextFromSeeds(ctx, seedIDs, maxHops, maxNodes)
}
