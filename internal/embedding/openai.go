package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultOpenAIModel is the hosted model used when none is configured.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
	// OpenAI supports up to 2048 texts per batch, but smaller batches reduce TPM pressure.
	DefaultBatchSize = 500
)

// OpenAI embeds texts with the OpenAI embeddings API, one call per batch.
type OpenAI struct {
	client    *openai.Client // nil when no API key is configured
	model     string
	dimension int
	batchSize int
}

var _ Provider = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI provider. A missing API key is not an error here:
// the provider reports ErrMissingCredential from Embed so the chain can move on.
func NewOpenAI(cfg OpenAIConfig, dimension int) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	p := &OpenAI{
		model:     cfg.Model,
		dimension: dimension,
		batchSize: cfg.BatchSize,
	}

	if cfg.APIKey != "" {
		opts := []option.RequestOption{
			option.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(0), // 429s are retried below with backoff
		}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		client := openai.NewClient(opts...)
		p.client = &client
	}

	return p
}

// Name returns "openai".
func (p *OpenAI) Name() string { return string(ProviderOpenAI) }

// Embed generates embeddings batch by batch. A failed batch leaves nil entries
// for its texts; an error is returned only when every batch failed.
func (p *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.client == nil {
		return nil, ErrMissingCredential
	}

	vectors := make([][]float32, len(texts))
	var lastErr error
	succeeded := 0

	for i := 0; i < len(texts); i += p.batchSize {
		end := min(i+p.batchSize, len(texts))

		embeddings, err := p.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			lastErr = fmt.Errorf("batch %d-%d: %w", i, end, err)
			continue
		}
		copy(vectors[i:end], embeddings)
		succeeded++
	}

	if succeeded == 0 && lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailure, lastErr)
	}
	return vectors, nil
}

// embedBatchWithRetry generates embeddings for a single batch with retry logic.
// Retries with exponential backoff on rate limit errors (HTTP 429).
// Other errors are treated as permanent and fail immediately.
func (p *OpenAI) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		params := openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(p.model),
		}
		if p.dimension > 0 {
			params.Dimensions = openai.Int(int64(p.dimension))
		}

		resp, err := p.client.Embeddings.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		// Place by index; the API does not promise response order.
		embeddings = make([][]float32, len(texts))
		for _, data := range resp.Data {
			if data.Index < 0 || int(data.Index) >= len(texts) {
				continue
			}
			embeddings[data.Index] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return embeddings, err
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but storage uses float32 for memory efficiency.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
