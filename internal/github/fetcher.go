package github

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"

	"github.com/bull/ingestion-service/internal/ingest"
)

// Source identifies a directory in a repository.
type Source struct {
	Owner string
	Repo  string
	Path  string
	// Ref is a branch, tag or commit; empty means the default branch.
	Ref string
	// Extensions filters files by suffix; empty means ".md".
	Extensions []string
}

// Transform rewrites a fetched file before it is ingested, e.g. markdown to plain text.
type Transform func(content []byte) (string, error)

// Fetcher handles fetching documents from GitHub repositories
type Fetcher struct {
	client    *Client
	transform Transform
	logger    *slog.Logger
}

// NewFetcher creates a new document fetcher. A nil transform ingests files verbatim.
func NewFetcher(client *Client, transform Transform, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, transform: transform, logger: logger}
}

// FetchDocuments lists every matching file under src.Path and returns one
// document per file, named by its path relative to src.Path, in listing order.
func (f *Fetcher) FetchDocuments(ctx context.Context, src Source) ([]ingest.Document, error) {
	if len(src.Extensions) == 0 {
		src.Extensions = []string{".md"}
	}

	paths, err := f.listRecursive(ctx, src, src.Path, "")
	if err != nil {
		return nil, err
	}
	f.logger.Info("Found documents", "repo", src.Owner+"/"+src.Repo, "count", len(paths))

	docs := make([]ingest.Document, 0, len(paths))
	for _, rel := range paths {
		text, err := f.fetchFile(ctx, src, rel)
		if err != nil {
			return nil, err
		}
		docs = append(docs, ingest.Document{Filename: rel, Text: text})
	}
	return docs, nil
}

// listRecursive traverses directories to find all matching files
func (f *Fetcher) listRecursive(ctx context.Context, src Source, fullPath, relativePath string) ([]string, error) {
	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, src.Owner, src.Repo, fullPath, refOptions(src))
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	var files []string
	for _, item := range dirContents {
		name := item.GetName()
		itemRelPath := path.Join(relativePath, name)

		switch item.GetType() {
		case "file":
			if hasExtension(name, src.Extensions) {
				files = append(files, itemRelPath)
			}
		case "dir":
			sub, err := f.listRecursive(ctx, src, path.Join(fullPath, name), itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}
	return files, nil
}

// fetchFile fetches and decodes a single file
func (f *Fetcher) fetchFile(ctx context.Context, src Source, relativePath string) (string, error) {
	fullPath := path.Join(src.Path, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, src.Owner, src.Repo, fullPath, refOptions(src))
	if err != nil {
		return "", fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return "", fmt.Errorf("no file content returned for %s", fullPath)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}

	if f.transform == nil {
		return content, nil
	}
	text, err := f.transform([]byte(content))
	if err != nil {
		return "", fmt.Errorf("failed to transform %s: %w", fullPath, err)
	}
	return text, nil
}

func refOptions(src Source) *github.RepositoryContentGetOptions {
	if src.Ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: src.Ref}
}

func hasExtension(name string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
