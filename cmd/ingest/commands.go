package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bull/ingestion-service/internal/app"
	"github.com/bull/ingestion-service/internal/config"
	ghclient "github.com/bull/ingestion-service/internal/github"
	"github.com/bull/ingestion-service/internal/ingest"
	"github.com/bull/ingestion-service/internal/markdown"
)

type rootOptions struct {
	configFile string
	chunkSize  int
	overlap    int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ingest",
		Short: "Document ingestion tool",
		Long: `CLI tool for chunking, embedding and storing documents in per-tenant vector collections.

Configuration is read from the environment (and an optional config file):
  EMBEDDING_PROVIDER  openai | ollama | deterministic (default: deterministic)
  VECTOR_STORE        badger | qdrant | pgvector (default: badger)
  STORE_PATH          badger data directory (default: ./chroma_data)
  OPENAI_API_KEY      OpenAI API key for embeddings
  GITHUB_TOKEN        GitHub token for higher rate limits (optional)`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().IntVar(&opts.chunkSize, "chunk-size", -1, "chunk window length in characters (default from CHUNK_SIZE)")
	root.PersistentFlags().IntVar(&opts.overlap, "overlap", -1, "characters shared by consecutive chunks (default from CHUNK_OVERLAP)")

	root.AddCommand(newFilesCmd(opts), newGitHubCmd(opts), newHealthCmd(opts))
	return root
}

// setup loads configuration and builds the components. Logs go to stderr.
func setup(ctx context.Context, opts *rootOptions, stderr io.Writer) (*app.App, error) {
	cfg, warnings, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	for _, w := range warnings {
		logger.Warn(w)
	}
	return app.New(ctx, cfg, logger)
}

func (o *rootOptions) request(a *app.App, tenant string, docs []ingest.Document) ingest.Request {
	defaults := a.ChunkDefaults()
	req := ingest.Request{TenantID: tenant, Documents: docs, ChunkSize: defaults.Size, Overlap: defaults.Overlap}
	if o.chunkSize >= 0 {
		req.ChunkSize = o.chunkSize
	}
	if o.overlap >= 0 {
		req.Overlap = o.overlap
	}
	return req
}

func newFilesCmd(opts *rootOptions) *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "files --tenant TENANT PATH...",
		Short: "Ingest local files, one document per file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readFiles(args)
			if err != nil {
				return err
			}
			return runIngest(cmd, opts, tenant, docs)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id (required)")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func newGitHubCmd(opts *rootOptions) *cobra.Command {
	var (
		tenant string
		src    ghclient.Source
		plain  bool
	)

	cmd := &cobra.Command{
		Use:   "github --tenant TENANT --owner OWNER --repo REPO [--path DIR]",
		Short: "Ingest markdown files from a GitHub repository directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			client, err := ghclient.NewClient(cfg.GitHub.Token)
			if err != nil {
				return fmt.Errorf("create GitHub client: %w", err)
			}

			var transform ghclient.Transform
			if plain {
				transform = markdown.PlainText
			}

			color.Blue("Fetching %s/%s/%s...", src.Owner, src.Repo, src.Path)
			docs, err := ghclient.NewFetcher(client, transform, nil).FetchDocuments(cmd.Context(), src)
			if err != nil {
				return err
			}
			color.Green("✓ Fetched %d documents", len(docs))

			return runIngest(cmd, opts, tenant, docs)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id (required)")
	cmd.Flags().StringVar(&src.Owner, "owner", "", "repository owner (required)")
	cmd.Flags().StringVar(&src.Repo, "repo", "", "repository name (required)")
	cmd.Flags().StringVar(&src.Path, "path", "", "directory within the repository")
	cmd.Flags().StringVar(&src.Ref, "ref", "", "branch, tag or commit (default branch if empty)")
	cmd.Flags().StringSliceVar(&src.Extensions, "ext", []string{".md"}, "file extensions to include")
	cmd.Flags().BoolVar(&plain, "plain", false, "strip markdown syntax before ingesting")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("repo")
	return cmd
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the collection store and embedding provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			h := a.Checker.Check(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider: %s\n", h.ModelProvider)
			if h.LocalService != "" {
				fmt.Fprintf(out, "Local service: %s\n", h.LocalService)
			}
			fmt.Fprintf(out, "Store (%s): %s\n", a.Config.VectorStore, h.Store)

			if !h.Healthy() {
				color.Red("✗ %s", h.Status)
				return fmt.Errorf("store %s", h.Store)
			}
			color.Green("✓ %s", h.Status)
			return nil
		},
	}
}

func runIngest(cmd *cobra.Command, opts *rootOptions, tenant string, docs []ingest.Document) error {
	ctx := cmd.Context()
	start := time.Now()

	a, err := setup(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	color.Blue("Ingesting %d documents for tenant %s...", len(docs), tenant)
	result, err := a.Pipeline.Ingest(ctx, opts.request(a, tenant, docs))
	if err != nil {
		color.Red("✗ %v", err)
		return err
	}

	out := cmd.OutOrStdout()
	color.Green("✓ Ingestion complete")
	fmt.Fprintf(out, "  Tenant: %s\n", result.TenantID)
	fmt.Fprintf(out, "  Documents: %d\n", result.Documents)
	fmt.Fprintf(out, "  Chunks: %d\n", result.UpsertedEmbeddings)
	if result.Degraded > 0 {
		color.Yellow("  Fallback embeddings: %d", result.Degraded)
	}
	fmt.Fprintf(out, "  Duration: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

// readFiles reads each path as a document named by its base name.
func readFiles(paths []string) ([]ingest.Document, error) {
	docs := make([]ingest.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		docs = append(docs, ingest.Document{Filename: filepath.Base(p), Text: string(data)})
	}
	return docs, nil
}
