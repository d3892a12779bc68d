package embedding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCreator stands in for the langchaingo Ollama client.
type fakeCreator struct {
	fn func(ctx context.Context, text string) ([]float32, error)

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	texts    []string
}

func (f *fakeCreator) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.texts = append(f.texts, texts...)
	f.mu.Unlock()

	vec, err := f.fn(ctx, texts[0])
	if err != nil {
		return nil, err
	}
	return [][]float32{vec}, nil
}

func newTestOllama(t *testing.T, creator embeddingCreator, cfg OllamaConfig) *Ollama {
	t.Helper()
	o, err := newOllama(creator, nil, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func TestOllama_OneRequestPerText(t *testing.T) {
	creator := &fakeCreator{fn: func(_ context.Context, text string) ([]float32, error) {
		return []float32{float32(len(text))}, nil
	}}
	o := newTestOllama(t, creator, OllamaConfig{Concurrency: 2})

	vectors, err := o.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vectors)
	assert.ElementsMatch(t, []string{"a", "bb", "ccc"}, creator.texts)
}

func TestOllama_FailureAffectsSingleText(t *testing.T) {
	creator := &fakeCreator{fn: func(_ context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, errors.New("model not found")
		}
		return []float32{1}, nil
	}}
	o := newTestOllama(t, creator, OllamaConfig{})

	vectors, err := o.Embed(context.Background(), []string{"ok", "bad", "ok"})
	require.NoError(t, err)
	assert.NotNil(t, vectors[0])
	assert.Nil(t, vectors[1])
	assert.NotNil(t, vectors[2])
}

func TestOllama_AllFail(t *testing.T) {
	creator := &fakeCreator{fn: func(context.Context, string) ([]float32, error) {
		return nil, errors.New("connection refused")
	}}
	o := newTestOllama(t, creator, OllamaConfig{})

	_, err := o.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrProviderFailure)
}

func TestOllama_Timeout(t *testing.T) {
	creator := &fakeCreator{fn: func(ctx context.Context, text string) ([]float32, error) {
		if text == "slow" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []float32{1}, nil
	}}
	o := newTestOllama(t, creator, OllamaConfig{Timeout: 50 * time.Millisecond})

	start := time.Now()
	vectors, err := o.Embed(context.Background(), []string{"slow", "fast"})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Nil(t, vectors[0])
	assert.Equal(t, []float32{1}, vectors[1])
}

func TestOllama_BoundedConcurrency(t *testing.T) {
	creator := &fakeCreator{fn: func(context.Context, string) ([]float32, error) {
		time.Sleep(10 * time.Millisecond)
		return []float32{1}, nil
	}}
	o := newTestOllama(t, creator, OllamaConfig{Concurrency: 3})

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = "t"
	}
	_, err := o.Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.LessOrEqual(t, creator.maxSeen.Load(), int32(3))
}

func TestOllama_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.Write([]byte(`{"models":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	o := newTestOllama(t, &fakeCreator{}, OllamaConfig{BaseURL: srv.URL + "/"})
	assert.NoError(t, o.Ping(context.Background()))
}

func TestOllama_PingUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := newTestOllama(t, &fakeCreator{}, OllamaConfig{BaseURL: srv.URL})
	assert.Error(t, o.Ping(context.Background()))
}

func TestResolver_OllamaPartialFailure(t *testing.T) {
	creator := &fakeCreator{fn: func(_ context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, errors.New("oom")
		}
		return make([]float32, testDim), nil
	}}
	o := newTestOllama(t, creator, OllamaConfig{})
	r := NewResolverWithProviders([]Provider{o}, testDim, nil)

	res := r.Embed(context.Background(), []string{"good", "bad", "good"})
	assert.Equal(t, []string{"ollama", "deterministic", "ollama"}, res.Sources)
	assert.Equal(t, DeterministicVector("bad", testDim), res.Vectors[1])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checked, err := r.PingLocal(ctx)
	assert.True(t, checked)
	assert.Error(t, err)
}
