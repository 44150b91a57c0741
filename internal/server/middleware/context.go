package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/graphloom/loom/internal/cache"
	"github.com/graphloom/loom/pkg/ai"
	"github.com/graphloom/loom/pkg/graph"
	pgxstore "github.com/graphloom/loom/pkg/store/pgx"
)

type AppUser struct {
	Subject string
	Role    string
}

// App bundles the shared clients and graph components handlers reach
// through the request context. It is built once at startup. The store is a
// read-only replica: every mutation is published to the worker, which owns
// the writing store.
type App struct {
	DBConn       *pgxpool.Pool
	DB           *pgxstore.SnapshotDBStore
	Queue        *amqp091.Channel
	Key          *keyfunc.Keyfunc
	S3           *s3.Client
	AiClient     ai.GraphAIClient
	Store        *graph.Store
	Planner      *graph.Planner
	Cache        *cache.SubgraphCache
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
