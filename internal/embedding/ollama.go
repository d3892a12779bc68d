package embedding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

// Default Ollama settings.
const (
	DefaultOllamaBaseURL     = "http://localhost:11434"
	DefaultOllamaModel       = "all-minilm" // 384 dimensions
	DefaultOllamaTimeout     = 30 * time.Second
	DefaultOllamaConcurrency = 4
)

// embeddingCreator is the part of the langchaingo Ollama client used here.
type embeddingCreator interface {
	CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error)
}

// Ollama embeds texts against a local Ollama daemon, one request per text.
// Requests run concurrently on a bounded worker pool, each under its own timeout.
type Ollama struct {
	client     embeddingCreator
	httpClient *http.Client
	baseURL    string
	model      string
	timeout    time.Duration
	pool       *ants.Pool
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var (
	_ Provider = (*Ollama)(nil)
	_ Pinger   = (*Ollama)(nil)
)

// NewOllama creates an Ollama provider. Call Close to release its worker pool.
func NewOllama(cfg OllamaConfig, logger *slog.Logger) (*Ollama, error) {
	cfg = ollamaDefaults(cfg)

	httpClient := &http.Client{Timeout: cfg.Timeout}
	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	return newOllama(llm, httpClient, cfg, logger)
}

func newOllama(client embeddingCreator, httpClient *http.Client, cfg OllamaConfig, logger *slog.Logger) (*Ollama, error) {
	cfg = ollamaDefaults(cfg)
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	pool, err := ants.NewPool(cfg.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("create ollama worker pool: %w", err)
	}

	o := &Ollama{
		client:     client,
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		pool:       pool,
		logger:     logger.With("provider", string(ProviderOllama)),
	}
	if cfg.RequestsPerSecond > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return o, nil
}

func ollamaDefaults(cfg OllamaConfig) OllamaConfig {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOllamaTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultOllamaConcurrency
	}
	return cfg
}

// Name returns "ollama".
func (o *Ollama) Name() string { return string(ProviderOllama) }

// Embed issues one request per text. A failed or timed-out request leaves a nil
// entry for that text only; the others are unaffected.
func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	for i, text := range texts {
		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			vec, err := o.embedOne(ctx, text)
			if err != nil {
				failed.Add(1)
				o.logger.Debug("embedding request failed", "item", i, "error", err)
				return
			}
			vectors[i] = vec
		})
		if err != nil {
			wg.Done()
			failed.Add(1)
			o.logger.Debug("embedding request not scheduled", "item", i, "error", err)
		}
	}
	wg.Wait()

	if n := failed.Load(); int(n) == len(texts) {
		return nil, fmt.Errorf("%w: all %d ollama requests failed", ErrProviderFailure, n)
	}
	return vectors, nil
}

func (o *Ollama) embedOne(ctx context.Context, text string) ([]float32, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	embeddings, err := o.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
	}
	return embeddings[0], nil
}

// Ping checks the daemon is reachable through its /api/tags endpoint,
// which answers without running inference.
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: create ping request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Close releases the worker pool.
func (o *Ollama) Close() error {
	o.pool.Release()
	return nil
}
