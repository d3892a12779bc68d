package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
)

// Resolution is the outcome of embedding a batch.
type Resolution struct {
	// Vectors holds one vector per input text, in input order.
	Vectors [][]float32
	// Sources names the provider that produced each vector.
	Sources []string
}

// Degraded returns how many vectors came from a provider other than primary.
func (r Resolution) Degraded(primary string) int {
	n := 0
	for _, s := range r.Sources {
		if s != primary {
			n++
		}
	}
	return n
}

// Resolver embeds batches through an ordered provider chain ending with the
// deterministic provider.
type Resolver struct {
	chain     []Provider
	fallback  *Deterministic
	dimension int
	logger    *slog.Logger
}

// NewResolver builds the provider chain described by cfg.
func NewResolver(cfg ProviderConfig, logger *slog.Logger) (*Resolver, error) {
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderDeterministic
	}

	kinds := append([]ProviderKind{cfg.Provider}, cfg.Fallbacks...)
	var providers []Provider
	seen := make(map[ProviderKind]bool)
	for _, kind := range kinds {
		if seen[kind] {
			continue
		}
		seen[kind] = true

		switch kind {
		case ProviderOpenAI:
			providers = append(providers, NewOpenAI(cfg.OpenAI, cfg.Dimension))
		case ProviderOllama:
			p, err := NewOllama(cfg.Ollama, logger)
			if err != nil {
				closeProviders(providers)
				return nil, err
			}
			providers = append(providers, p)
		case ProviderDeterministic:
			providers = append(providers, NewDeterministic(cfg.Dimension))
		default:
			closeProviders(providers)
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, kind)
		}
	}

	return NewResolverWithProviders(providers, cfg.Dimension, logger), nil
}

// NewResolverWithProviders builds a resolver over an explicit chain.
// The deterministic provider is appended unless the chain already ends with one.
func NewResolverWithProviders(providers []Provider, dimension int, logger *slog.Logger) *Resolver {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	if logger == nil {
		logger = slog.Default()
	}

	chain := slices.Clone(providers)
	var fallback *Deterministic
	if n := len(chain); n > 0 {
		if d, ok := chain[n-1].(*Deterministic); ok && d.dimension == dimension {
			fallback = d
			chain = chain[:n-1]
		}
	}
	if fallback == nil {
		fallback = NewDeterministic(dimension)
	}

	return &Resolver{
		chain:     chain,
		fallback:  fallback,
		dimension: dimension,
		logger:    logger,
	}
}

// Active returns the name of the primary provider.
func (r *Resolver) Active() string {
	if len(r.chain) == 0 {
		return r.fallback.Name()
	}
	return r.chain[0].Name()
}

// Dimension returns the length of every vector the resolver produces.
func (r *Resolver) Dimension() int { return r.dimension }

// Embed returns one vector per text. Texts a provider fails on, whether the
// whole call errors or a single entry is missing or has the wrong length, are
// passed to the next provider; whatever remains gets a deterministic vector.
// Embed never fails.
func (r *Resolver) Embed(ctx context.Context, texts []string) Resolution {
	res := Resolution{
		Vectors: make([][]float32, len(texts)),
		Sources: make([]string, len(texts)),
	}

	pending := make([]int, len(texts))
	for i := range texts {
		pending[i] = i
	}

	for _, p := range r.chain {
		if len(pending) == 0 {
			break
		}
		pending = r.apply(ctx, p, texts, pending, &res)
	}

	if len(pending) > 0 {
		batch := pick(texts, pending)
		vectors, _ := r.fallback.Embed(ctx, batch)
		for j, idx := range pending {
			res.Vectors[idx] = vectors[j]
			res.Sources[idx] = r.fallback.Name()
		}
		if len(r.chain) > 0 {
			r.logger.Warn("using deterministic embeddings", "items", len(pending), "total", len(texts))
		}
	}

	return res
}

// apply runs p over the pending items and returns the ones it did not embed.
func (r *Resolver) apply(ctx context.Context, p Provider, texts []string, pending []int, res *Resolution) []int {
	vectors, err := p.Embed(ctx, pick(texts, pending))
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrMissingCredential) {
			level = slog.LevelInfo
		}
		r.logger.Log(ctx, level, "embedding provider failed, falling through",
			"provider", p.Name(), "items", len(pending), "error", err)
		return pending
	}

	var remaining []int
	for j, idx := range pending {
		if j >= len(vectors) || len(vectors[j]) != r.dimension {
			remaining = append(remaining, idx)
			continue
		}
		res.Vectors[idx] = vectors[j]
		res.Sources[idx] = p.Name()
	}
	if len(remaining) > 0 {
		r.logger.Warn("embedding provider skipped items, falling through",
			"provider", p.Name(), "items", len(remaining), "total", len(pending))
	}
	return remaining
}

// PingLocal pings the first provider in the chain that supports it.
// checked is false when no provider in the chain reports reachability.
func (r *Resolver) PingLocal(ctx context.Context) (checked bool, err error) {
	for _, p := range r.chain {
		if pinger, ok := p.(Pinger); ok {
			return true, pinger.Ping(ctx)
		}
	}
	return false, nil
}

// Close releases resources held by providers in the chain.
func (r *Resolver) Close() error {
	return closeProviders(r.chain)
}

func closeProviders(providers []Provider) error {
	var errs []error
	for _, p := range providers {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

func pick(texts []string, idx []int) []string {
	out := make([]string, len(idx))
	for j, i := range idx {
		out[j] = texts[i]
	}
	return out
}
