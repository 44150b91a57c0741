// Package extract turns raw document text into extraction records ready for
// normalization. It chunks the text into token-bounded units, runs the
// structured extraction model over the units in parallel, and converts the
// model output into records carrying the document's structural skeleton
// alongside its entities.
package extract

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/graphloom/loom/internal/util"
	"github.com/graphloom/loom/pkg/ai"
	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/logger"
)

// Extractor runs structured knowledge extraction over documents.
//
// An Extractor should be created using NewExtractor.
type Extractor struct {
	client      ai.GraphAIClient
	encoder     string
	maxTokens   int
	parallelMax int
	maxRetries  int
}

// NewExtractorParams defines the configuration for creating an Extractor.
// Zero values fall back to defaults suitable for common extraction models.
type NewExtractorParams struct {
	Client      ai.GraphAIClient
	Encoder     string
	MaxTokens   int
	ParallelMax int
	MaxRetries  int
}

// NewExtractor creates a new Extractor.
func NewExtractor(params NewExtractorParams) *Extractor {
	encoder := params.Encoder
	if encoder == "" {
		encoder = "o200k_base"
	}
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1200
	}
	parallelMax := params.ParallelMax
	if parallelMax <= 0 {
		parallelMax = 4
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Extractor{
		client:      params.Client,
		encoder:     encoder,
		maxTokens:   maxTokens,
		parallelMax: parallelMax,
		maxRetries:  maxRetries,
	}
}

// Extraction is the full extraction result for one document.
type Extraction struct {
	Document common.Document  `json:"document"`
	Units    []UnitExtraction `json:"units"`
}

// Extract chunks the document text and runs the extraction model over every
// unit. Units are processed in parallel; a unit that keeps failing after
// retries fails the whole extraction, since a partially extracted document
// would ingest an incomplete graph.
func (e *Extractor) Extract(
	ctx context.Context,
	doc common.Document,
	text string,
) (*Extraction, error) {
	units, err := splitIntoUnits(text, e.encoder, e.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to split document into units: %w", err)
	}

	logger.Info("[Extractor] Document chunked",
		"document", doc.ID,
		"units", len(units),
	)

	results := make([]UnitExtraction, 0, len(units))
	mergeMu := sync.Mutex{}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelMax)
	for _, unit := range units {
		u := unit
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return nil
			default:
				res, err := util.RetryWithContext(gCtx, e.maxRetries, func(ctx context.Context) (UnitExtraction, error) {
					return extractFromUnit(ctx, u, e.client)
				})
				if err != nil {
					return fmt.Errorf("failed to extract from unit %s: %w", u.ID, err)
				}

				mergeMu.Lock()
				results = append(results, res)
				mergeMu.Unlock()
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortUnitExtractions(results)

	logger.Info("[Extractor] Document extracted",
		"document", doc.ID,
		"units", len(results),
		"entities", countEntities(results),
	)

	return &Extraction{
		Document: doc,
		Units:    results,
	}, nil
}

func countEntities(units []UnitExtraction) int {
	n := 0
	for _, u := range units {
		n += len(u.Entities)
	}
	return n
}
