package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/graphloom/loom/internal/cache"
	"github.com/graphloom/loom/internal/metrics"
	"github.com/graphloom/loom/internal/queue"
	mid "github.com/graphloom/loom/internal/server/middleware"
	"github.com/graphloom/loom/internal/storage"
	"github.com/graphloom/loom/internal/util"
	"github.com/graphloom/loom/pkg/ai"
	oai "github.com/graphloom/loom/pkg/ai/ollama"
	gai "github.com/graphloom/loom/pkg/ai/openai"
	"github.com/graphloom/loom/pkg/graph"
	"github.com/graphloom/loom/pkg/logger"
	pgxstore "github.com/graphloom/loom/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewAIClientFromEnv selects the model adapter by AI_ADAPTER and builds a
// client from the AI_* environment.
func NewAIClientFromEnv() ai.GraphAIClient {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			AnswerModel:     util.GetEnv("AI_CHAT_ANSWER_MODEL"),
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			EmbedDim:              int(util.GetEnvNumeric("AI_EMBED_DIM", 1536)),
			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 8)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),
			AnswerModel:     util.GetEnv("AI_CHAT_ANSWER_MODEL"),
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			EmbedDim:              int(util.GetEnvNumeric("AI_EMBED_DIM", 1536)),
			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 8)),
		})
	}
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	var key *keyfunc.Keyfunc
	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		key = &k
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		logger.Fatal("Failed to prepare migrations", "err", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Fatal("Failed to parse database config", "err", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	conn, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	db := pgxstore.NewSnapshotDBStore(pgxstore.NewSnapshotDBStoreParams{Conn: conn})

	sink, err := NewSnapshotStoreFromEnv(ctx, db)
	if err != nil {
		logger.Fatal("Failed to select snapshot backend", "err", err)
	}
	defer sink.Close()

	// The worker owns all graph mutations. The server keeps a read-only
	// replica of the store and follows the durable snapshot; a fresh
	// database simply starts empty.
	store := graph.NewStore()
	if err := refreshStore(ctx, store, sink); err != nil {
		logger.Fatal("Failed to restore snapshot", "err", err)
	}
	if revision := store.Revision(); revision > 0 {
		logger.Info("[Server] Graph restored", "revision", revision)
	}

	snap := store.Snapshot()
	metrics.GraphNodes.Set(float64(snap.NodeCount()))
	metrics.GraphEdges.Set(float64(snap.EdgeCount()))

	refreshSec := int(util.GetEnvNumeric("SNAPSHOT_REFRESH_SEC", 5))
	go func() {
		ticker := time.NewTicker(time.Duration(refreshSec) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := refreshStore(ctx, store, sink); err != nil {
					logger.Warn("[Server] Snapshot refresh failed", "err", err)
					continue
				}
				snap := store.Snapshot()
				metrics.GraphNodes.Set(float64(snap.NodeCount()))
				metrics.GraphEdges.Set(float64(snap.EdgeCount()))
			}
		}
	}()

	planner := graph.NewPlanner(graph.NewPlannerParams{Store: store})

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch, queue.WorkQueues); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	s3 := storage.NewS3Client(ctx)

	subgraphCache := cache.NewSubgraphCache(cache.NewSubgraphCacheParams{
		Client: cache.NewRedisClient(),
	})

	app := &mid.App{
		DBConn:       conn,
		DB:           db,
		Queue:        ch,
		Key:          key,
		S3:           s3,
		AiClient:     NewAIClientFromEnv(),
		Store:        store,
		Planner:      planner,
		Cache:        subgraphCache,
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("512M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
