package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/ingestion-service/internal/ingest"
)

type entry struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Path string `json:"path"`
}

type file struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// newFakeGitHub serves a tiny repository: docs/{intro.md, logo.png, guide/setup.md}.
func newFakeGitHub(t *testing.T) (*Client, *[]string) {
	t.Helper()
	var refs []string

	dirs := map[string][]entry{
		"docs": {
			{Type: "file", Name: "intro.md", Path: "docs/intro.md"},
			{Type: "file", Name: "logo.png", Path: "docs/logo.png"},
			{Type: "dir", Name: "guide", Path: "docs/guide"},
		},
		"docs/guide": {
			{Type: "file", Name: "setup.md", Path: "docs/guide/setup.md"},
		},
	}
	files := map[string]string{
		"docs/intro.md":       "# Intro\n\nHello.",
		"docs/guide/setup.md": "Run `make`.",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refs = append(refs, r.URL.Query().Get("ref"))
		p := strings.TrimPrefix(r.URL.Path, "/repos/acme/handbook/contents/")
		w.Header().Set("Content-Type", "application/json")

		if d, ok := dirs[p]; ok {
			json.NewEncoder(w).Encode(d)
			return
		}
		if content, ok := files[p]; ok {
			json.NewEncoder(w).Encode(file{
				Type:     "file",
				Name:     p[strings.LastIndex(p, "/")+1:],
				Path:     p,
				Encoding: "base64",
				Content:  base64.StdEncoding.EncodeToString([]byte(content)),
			})
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient("")
	require.NoError(t, err)
	client.BaseURL, err = url.Parse(srv.URL + "/")
	require.NoError(t, err)
	return client, &refs
}

func TestFetchDocuments(t *testing.T) {
	client, refs := newFakeGitHub(t)
	fetcher := NewFetcher(client, nil, nil)

	docs, err := fetcher.FetchDocuments(context.Background(), Source{Owner: "acme", Repo: "handbook", Path: "docs", Ref: "v1"})
	require.NoError(t, err)
	assert.Equal(t, []ingest.Document{
		{Filename: "intro.md", Text: "# Intro\n\nHello."},
		{Filename: "guide/setup.md", Text: "Run `make`."},
	}, docs)

	for _, ref := range *refs {
		assert.Equal(t, "v1", ref)
	}
}

func TestFetchDocumentsWithTransform(t *testing.T) {
	client, _ := newFakeGitHub(t)
	upper := func(b []byte) (string, error) { return strings.ToUpper(string(b)), nil }
	fetcher := NewFetcher(client, upper, nil)

	docs, err := fetcher.FetchDocuments(context.Background(), Source{Owner: "acme", Repo: "handbook", Path: "docs"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "RUN `MAKE`.", docs[1].Text)
}

func TestFetchDocumentsExtensions(t *testing.T) {
	client, _ := newFakeGitHub(t)
	fetcher := NewFetcher(client, nil, nil)

	docs, err := fetcher.FetchDocuments(context.Background(), Source{Owner: "acme", Repo: "handbook", Path: "docs/guide", Extensions: []string{".png"}})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFetchDocumentsMissingPath(t *testing.T) {
	client, _ := newFakeGitHub(t)
	fetcher := NewFetcher(client, nil, nil)

	_, err := fetcher.FetchDocuments(context.Background(), Source{Owner: "acme", Repo: "handbook", Path: "nope"})
	assert.ErrorContains(t, err, "failed to get contents of nope")
}
