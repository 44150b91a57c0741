package openai

import (
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"

	"github.com/graphloom/loom/pkg/ai"
)

// GraphOpenAIClient implements ai.GraphAIClient against OpenAI-compatible
// APIs. It manages separate clients for embeddings and chat so the two can
// point at different endpoints.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	embeddingModel  string
	answerModel     string
	extractionModel string

	embeddingURL string
	chatURL      string

	embedDim   int
	timeoutMin int
	reqLock    *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration for creating a
// GraphOpenAIClient.
//
// EmbeddingModel produces vectors for the semantic node index.
// AnswerModel writes answers from retrieved subgraphs; ExtractionModel runs
// schema-constrained extraction. Empty URLs mean the public OpenAI endpoint.
type NewGraphOpenAIClientParams struct {
	EmbeddingModel  string
	AnswerModel     string
	ExtractionModel string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	EmbedDim              int
	TimeoutMin            int
	MaxConcurrentRequests int64
}

// NewGraphOpenAIClient creates and returns a new GraphOpenAIClient.
func NewGraphOpenAIClient(params NewGraphOpenAIClientParams) *GraphOpenAIClient {
	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	timeoutMin := params.TimeoutMin
	if timeoutMin <= 0 {
		timeoutMin = 5
	}
	embedDim := params.EmbedDim
	if embedDim <= 0 {
		embedDim = 1536
	}

	return &GraphOpenAIClient{
		embeddingModel:  params.EmbeddingModel,
		answerModel:     params.AnswerModel,
		extractionModel: params.ExtractionModel,

		embeddingURL: params.EmbeddingURL,
		chatURL:      params.ChatURL,

		embedDim:   embedDim,
		timeoutMin: timeoutMin,
		reqLock:    semaphore.NewWeighted(maxConcurrent),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

// ExtractionModel returns the configured extraction model identifier.
func (c *GraphOpenAIClient) ExtractionModel() string {
	return c.extractionModel
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)
	return &client
}

func (c *GraphOpenAIClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.InputTokens += delta.InputTokens
	c.metrics.OutputTokens += delta.OutputTokens
	c.metrics.TotalTokens += delta.TotalTokens
	c.metrics.DurationMs += delta.DurationMs
}

// ResetMetrics clears the accumulated usage counters.
func (c *GraphOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns the accumulated usage counters.
func (c *GraphOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}
