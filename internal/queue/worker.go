package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/graphloom/loom/internal/metrics"
	"github.com/graphloom/loom/internal/storage"
	"github.com/graphloom/loom/internal/util"
	"github.com/graphloom/loom/pkg/ai"
	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/extract"
	"github.com/graphloom/loom/pkg/graph"
	"github.com/graphloom/loom/pkg/loader"
	"github.com/graphloom/loom/pkg/loader/doc"
	"github.com/graphloom/loom/pkg/loader/io"
	"github.com/graphloom/loom/pkg/loader/pdf"
	s3loader "github.com/graphloom/loom/pkg/loader/s3"
	"github.com/graphloom/loom/pkg/loader/web"
	pgxstore "github.com/graphloom/loom/pkg/store/pgx"

	"github.com/graphloom/loom/pkg/logger"
	"github.com/graphloom/loom/pkg/normalize"
)

// Worker processes ingest, delete, and edit jobs against the graph. It is
// the only process that mutates the graph store.
//
// A Worker should be created using NewWorker.
type Worker struct {
	s3        *awss3.Client
	aiClient  ai.GraphAIClient
	db        *pgxstore.SnapshotDBStore
	store     *graph.Store
	builder   *graph.Builder
	editor    *graph.Editor
	extractor *extract.Extractor
}

// NewWorkerParams defines the dependencies of a Worker.
type NewWorkerParams struct {
	S3Client  *awss3.Client
	AIClient  ai.GraphAIClient
	DB        *pgxstore.SnapshotDBStore
	Store     *graph.Store
	Builder   *graph.Builder
	Editor    *graph.Editor
	Extractor *extract.Extractor
}

// NewWorker creates a new Worker.
func NewWorker(params NewWorkerParams) *Worker {
	return &Worker{
		s3:        params.S3Client,
		aiClient:  params.AIClient,
		db:        params.DB,
		store:     params.Store,
		builder:   params.Builder,
		editor:    params.Editor,
		extractor: params.Extractor,
	}
}

// ProcessIngestMessage runs the full ingest pipeline for one document: load
// the object, extract, normalize, ingest into the graph, and index node
// embeddings. Document status moves queued → processing → ingested, or
// failed on error.
func (w *Worker) ProcessIngestMessage(ctx context.Context, msg string) (err error) {
	data := new(IngestJobMsg)
	if err = json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}

	record, err := w.db.GetDocument(ctx, data.DocumentID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound()) {
			logger.Warn("[Worker] Ingest job for unknown document", "document", data.DocumentID)
			return nil
		}
		return err
	}

	if err = w.db.SetDocumentStatus(ctx, record.ID, pgxstore.DocumentStatusProcessing); err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if updateErr := w.db.SetDocumentStatus(updateCtx, record.ID, pgxstore.DocumentStatusFailed); updateErr != nil {
			logger.Warn("[Worker] Failed to mark document as failed", "document", record.ID, "err", updateErr)
		}
	}()

	text, err := w.loadText(ctx, record)
	if err != nil {
		return err
	}

	document := common.Document{
		ID:         record.ID,
		Title:      record.Title,
		IngestedAt: time.Now().UTC(),
	}

	extraction, err := w.extractor.Extract(ctx, document, string(text))
	if err != nil {
		return err
	}

	records, skipped := normalize.NormalizeBatch(extraction.Records())
	if len(skipped) > 0 {
		logger.Warn("[Worker] Skipped malformed extraction records",
			"document", record.ID,
			"skipped", len(skipped),
		)
	}

	report, err := w.builder.Ingest(ctx, records, document)
	if err != nil {
		return err
	}

	if err = w.indexEmbeddings(ctx, record.ID); err != nil {
		return err
	}

	if err = w.db.SetDocumentStatus(ctx, record.ID, pgxstore.DocumentStatusIngested); err != nil {
		return err
	}

	logger.Info("[Worker] Document ingested",
		"document", record.ID,
		"nodes_created", report.NodesCreated,
		"nodes_merged", report.NodesMerged,
		"edges_created", report.EdgesCreated,
		"revision", report.Revision,
	)
	return nil
}

// ProcessDeleteMessage removes a document: its stored object, its exclusive
// graph content, its embedding index entries, and finally its record.
func (w *Worker) ProcessDeleteMessage(ctx context.Context, msg string) error {
	data := new(DeleteJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}

	record, err := w.db.GetDocument(ctx, data.DocumentID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound()) {
			logger.Warn("[Worker] Delete job for unknown document", "document", data.DocumentID)
			return nil
		}
		return err
	}

	if w.s3 != nil && strings.HasPrefix(record.ObjectKey, "documents/") {
		if err := storage.DeleteFile(ctx, w.s3, record.ObjectKey); err != nil {
			logger.Warn("[Worker] Failed to delete document object", "document", record.ID, "err", err)
		}
	}

	report, err := w.builder.RemoveDocument(ctx, record.ID)
	if err != nil {
		return err
	}
	for _, nodeID := range report.NodeIDs {
		if err := w.db.DeleteNodeEmbedding(ctx, nodeID); err != nil {
			return err
		}
	}

	if err := w.db.DeleteDocument(ctx, record.ID); err != nil {
		return err
	}

	logger.Info("[Worker] Document deleted",
		"document", record.ID,
		"nodes_deleted", report.NodesDeleted,
		"edges_deleted", report.EdgesDeleted,
		"revision", report.Revision,
	)
	return nil
}

// ProcessEditMessage applies one manual graph edit. Validation, conflict,
// and not-found failures are terminal: retrying cannot change the outcome,
// so they are logged and the message is acked.
func (w *Worker) ProcessEditMessage(ctx context.Context, msg string) error {
	data := new(EditJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return err
	}

	var opts []graph.EditOption
	if data.ExpectedRevision > 0 {
		opts = append(opts, graph.WithExpectedRevision(data.ExpectedRevision))
	}

	var (
		revision uint64
		err      error
	)
	switch data.Operation {
	case EditOpUpdateNode:
		revision, err = w.editor.UpdateNode(ctx, data.NodeID, graph.Patch{
			Attributes:    data.Attributes,
			Authoritative: data.Authoritative,
		}, opts...)
	case EditOpDeleteNode:
		revision, err = w.editor.DeleteNode(ctx, data.NodeID, opts...)
		if err == nil {
			if embErr := w.db.DeleteNodeEmbedding(ctx, data.NodeID); embErr != nil {
				logger.Warn("[Worker] Failed to delete node embedding", "node", data.NodeID, "err", embErr)
			}
		}
	case EditOpCreateEdge:
		weight := 1.0
		if data.Weight != nil {
			weight = *data.Weight
		}
		revision, err = w.editor.AddEdge(ctx, data.Source, data.Target, data.Label, weight, opts...)
	case EditOpUpdateEdge:
		key := common.EdgeKey{Source: data.Source, Target: data.Target, Label: data.Label}
		revision, err = w.editor.UpdateEdge(ctx, key, graph.Patch{Weight: data.Weight}, opts...)
	case EditOpDeleteEdge:
		key := common.EdgeKey{Source: data.Source, Target: data.Target, Label: data.Label}
		revision, err = w.editor.DeleteEdge(ctx, key, opts...)
	default:
		logger.Warn("[Worker] Unknown edit operation", "operation", data.Operation)
		metrics.EditTotal.WithLabelValues(data.Operation, "error").Inc()
		return nil
	}

	if err != nil {
		metrics.EditTotal.WithLabelValues(data.Operation, "error").Inc()
		if errors.Is(err, common.ErrValidation()) ||
			errors.Is(err, common.ErrConflict()) ||
			errors.Is(err, common.ErrNotFound()) {
			logger.Warn("[Worker] Edit rejected", "operation", data.Operation, "err", err)
			return nil
		}
		return err
	}

	metrics.EditTotal.WithLabelValues(data.Operation, "ok").Inc()
	logger.Info("[Worker] Edit applied", "operation", data.Operation, "revision", revision)
	return nil
}

// sourceLoader picks the byte source for a document key: uploaded objects
// live in storage under documents/, web documents keep their URL as the
// key, and anything else is read from the local filesystem.
func sourceLoader(key string, s3Client *awss3.Client, bucket string) loader.GraphFileLoader {
	switch {
	case strings.HasPrefix(key, "http://"), strings.HasPrefix(key, "https://"):
		return web.NewWebGraphLoader()
	case strings.HasPrefix(key, "documents/") && s3Client != nil:
		return s3loader.NewS3GraphFileLoaderWithClient(bucket, s3Client)
	default:
		return io.NewIOGraphFileLoader()
	}
}

// loadText resolves the document's loader chain (byte source plus a format
// parser when the key calls for one) and returns the raw text.
func (w *Worker) loadText(ctx context.Context, record *pgxstore.DocumentRecord) ([]byte, error) {
	bucket := util.GetEnvString("AWS_BUCKET", "loom")
	source := sourceLoader(record.ObjectKey, w.s3, bucket)

	switch loader.FormatFor(record.ObjectKey) {
	case "pdf":
		source = pdf.NewPDFGraphLoader(source)
	case "docx":
		source = doc.NewDocGraphLoader(source)
	}

	file := loader.GraphFile{
		ID:     record.ID,
		Path:   record.ObjectKey,
		Loader: source,
	}
	return file.GetText(ctx)
}

// indexEmbeddings (re)indexes every node carrying provenance from the given
// document.
func (w *Worker) indexEmbeddings(ctx context.Context, docID string) error {
	snap := w.store.Snapshot()
	var touched []common.Node
	for _, node := range snap.Nodes() {
		for _, prov := range node.Provenance {
			if prov.DocumentID == docID {
				touched = append(touched, node)
				break
			}
		}
	}
	return w.db.UpsertNodeEmbeddings(ctx, touched, w.aiClient)
}
