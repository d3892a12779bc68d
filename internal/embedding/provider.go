// Package embedding turns chunk texts into fixed-length vectors.
//
// Vectors come from an ordered chain of providers. Items a provider cannot
// embed move on to the next provider in the chain, and the deterministic
// provider always closes the chain, so resolution never fails.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultDimension is the vector length used when none is configured.
const DefaultDimension = 384

var (
	// ErrMissingCredential is returned by providers that need an API key but have none.
	ErrMissingCredential = errors.New("embedding provider credential missing")

	// ErrProviderFailure is returned when a provider could not embed any of its inputs.
	ErrProviderFailure = errors.New("embedding provider failure")

	// ErrUnknownProvider is returned for provider names that are not recognised.
	ErrUnknownProvider = errors.New("unknown embedding provider")
)

// Provider embeds a batch of texts.
//
// Embed returns one entry per input text, in input order. A nil entry marks a
// text the provider could not embed; a non-nil error means none of the texts
// were embedded. Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Pinger is implemented by providers that can report whether their backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderKind selects one of the supported providers.
type ProviderKind string

const (
	ProviderOpenAI        ProviderKind = "openai"
	ProviderOllama        ProviderKind = "ollama"
	ProviderDeterministic ProviderKind = "deterministic"
)

// ParseProviderKind maps a configured name to a ProviderKind.
// "llama" and "mock" are accepted as aliases of ollama and deterministic.
func ParseProviderKind(name string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		return ProviderOpenAI, nil
	case "ollama", "llama":
		return ProviderOllama, nil
	case "deterministic", "mock", "":
		return ProviderDeterministic, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// ProviderConfig selects and configures the provider chain.
type ProviderConfig struct {
	// Provider is the primary provider.
	Provider ProviderKind
	// Fallbacks are tried in order for items the primary could not embed,
	// before the deterministic provider.
	Fallbacks []ProviderKind
	// Dimension is the length of every produced vector.
	Dimension int

	OpenAI OpenAIConfig
	Ollama OllamaConfig
}

// OpenAIConfig configures the hosted embedding API.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string // optional, for compatible gateways
	Model     string
	BatchSize int
}

// OllamaConfig configures the local embedding daemon.
type OllamaConfig struct {
	BaseURL           string
	Model             string
	Timeout           time.Duration // per request
	Concurrency       int
	RequestsPerSecond float64 // 0 disables rate limiting
}
