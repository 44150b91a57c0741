package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/graphloom/loom/internal/metrics"
	"github.com/graphloom/loom/internal/queue"
	"github.com/graphloom/loom/internal/server"
	"github.com/graphloom/loom/internal/storage"
	"github.com/graphloom/loom/internal/util"
	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/extract"
	"github.com/graphloom/loom/pkg/graph"
	"github.com/graphloom/loom/pkg/logger"
	"github.com/graphloom/loom/pkg/logger/console"
	pgxstore "github.com/graphloom/loom/pkg/store/pgx"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Init s3 client
	s3Client := storage.NewS3Client(ctx)

	// GraphAiClient
	aiClient := server.NewAIClientFromEnv()

	// Init pgx client
	poolCfg, err := pgxpool.ParseConfig(util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Failed to parse database config", "err", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pgConn, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	db := pgxstore.NewSnapshotDBStore(pgxstore.NewSnapshotDBStoreParams{Conn: pgConn})

	sink, err := server.NewSnapshotStoreFromEnv(ctx, db)
	if err != nil {
		logger.Fatal("Failed to open snapshot backend", "err", err)
	}
	defer sink.Close()

	// Restore the graph from the last durable snapshot. A fresh install
	// has none, so the worker starts with an empty graph.
	store := graph.NewStore()
	if data, revision, err := sink.LoadLatest(ctx); err != nil {
		if !errors.Is(err, common.ErrNotFound()) {
			logger.Fatal("Failed to load latest snapshot", "err", err)
		}
		logger.Info("[Worker] No snapshot yet, starting empty")
	} else if data != nil {
		if err := store.Load(data); err != nil {
			logger.Fatal("Failed to restore snapshot", "revision", revision, "err", err)
		}
		logger.Info("[Worker] Graph restored", "revision", revision)
	}

	persister := graph.NewPersister(graph.NewPersisterParams{
		Store: store,
		Sink:  sink,
	})
	go func() {
		if err := persister.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Persister stopped", "err", err)
		}
	}()

	builder := graph.NewBuilder(graph.NewBuilderParams{
		Store:     store,
		Persister: persister,
	})
	editor := graph.NewEditor(graph.NewEditorParams{
		Store:     store,
		Persister: persister,
	})
	extractor := extract.NewExtractor(extract.NewExtractorParams{
		Client:      aiClient,
		MaxTokens:   int(util.GetEnvNumeric("EXTRACT_MAX_TOKENS", 1200)),
		ParallelMax: int(util.GetEnvNumeric("EXTRACT_PARALLEL", 4)),
	})
	worker := queue.NewWorker(queue.NewWorkerParams{
		S3Client:  s3Client,
		AIClient:  aiClient,
		DB:        db,
		Store:     store,
		Builder:   builder,
		Editor:    editor,
		Extractor: extractor,
	})

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.WorkQueues); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	logger.Info("Listening for messages")

	// Create a single consumer channel with prefetch=1
	// This ensures only ONE message is delivered at a time across all queues
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.WorkQueues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.QueueIngest:
					processingErr = worker.ProcessIngestMessage(ctx, string(qm.msg.Body))
				case queue.QueueDelete:
					processingErr = worker.ProcessDeleteMessage(ctx, string(qm.msg.Body))
				case queue.QueueEdit:
					processingErr = worker.ProcessEditMessage(ctx, string(qm.msg.Body))
				}

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					queue.HandleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				if qm.queueName == queue.QueueIngest {
					outcome := "ok"
					if processingErr != nil {
						outcome = "error"
					}
					metrics.IngestTotal.WithLabelValues(outcome).Inc()
					metrics.IngestDuration.Observe(time.Since(startTime).Seconds())
				}
				snap := store.Snapshot()
				metrics.GraphNodes.Set(float64(snap.NodeCount()))
				metrics.GraphEdges.Set(float64(snap.EdgeCount()))

				aiMetrics := aiClient.GetMetrics()
				aiDuration := time.Duration(aiMetrics.DurationMs) * time.Millisecond
				aiHours := int(aiDuration.Hours())
				aiMinutes := int(aiDuration.Minutes()) % 60
				aiSeconds := int(aiDuration.Seconds()) % 60
				logger.Info(
					"AI Metrics",
					"input_tokens", aiMetrics.InputTokens,
					"output_tokens", aiMetrics.OutputTokens,
					"total_tokens", aiMetrics.TotalTokens,
					"duration", fmt.Sprintf("%02d:%02d:%02d", aiHours, aiMinutes, aiSeconds),
				)

				processingDuration := time.Since(startTime)
				hours := int(processingDuration.Hours())
				minutes := int(processingDuration.Minutes()) % 60
				seconds := int(processingDuration.Seconds()) % 60
				logger.Info(
					"Processing time",
					"duration", fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
				)
				logger.Info("Waiting for next message")
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := persister.Flush(flushCtx); err != nil {
		logger.Error("Failed to flush snapshot on shutdown", "err", err)
	}
}
