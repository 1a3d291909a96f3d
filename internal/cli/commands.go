// Package cli implements the repoingest command line.
package cli

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/repoingest/internal/app"
	"github.com/dshills/repoingest/internal/config"
	"github.com/dshills/repoingest/internal/mcp"
	"github.com/dshills/repoingest/internal/parser"
	"github.com/dshills/repoingest/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// SetVersion records build information injected by the linker
func SetVersion(v, built string) {
	version = v
	buildTime = built
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand(os.Stdout, os.Stderr).Execute()
}

// NewRootCommand builds the command tree writing results to out and logs to
// logOut
func NewRootCommand(out, logOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "repoingest",
		Short: "Chunk, embed and store source repositories",
		Long: `repoingest splits source files into top-level declarations, keeps every
chunk under the embedding API's token ceiling and stores the embeddings in a
local SQLite index.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.SetOut(out)
	root.SetErr(logOut)

	root.PersistentFlags().String("config", "", "TOML configuration file")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().String("index-dir", "", "directory holding the index database")
	root.PersistentFlags().String("collection", "", "collection name")

	root.AddCommand(
		newIngestCommand(),
		newServeCommand(),
		newStatusCommand(),
		newVersionCommand(),
	)
	return root
}

func newIngestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Ingest a repository into the index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.RepoPath = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			logger.Info("ingesting repository",
				"path", cfg.RepoPath,
				"extensions", cfg.Extensions,
				"provider", a.Embedder.Provider(),
				"model", a.Embedder.Model(),
				"dimensions", a.Embedder.Dimension())

			idx, sink, err := a.NewIndexer(app.RunOptions{})
			if err != nil {
				return err
			}

			summary, err := idx.Run(ctx, cfg.RepoPath)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Collection:\t%s\n", sink.Collection().Name)
			fmt.Fprintf(w, "Files:\t%d\n", summary.FilesProcessed)
			fmt.Fprintf(w, "Chunks:\t%d\n", summary.ChunksProduced)
			fmt.Fprintf(w, "Splits:\t%d (%d pieces)\n", summary.SplitsPerformed, summary.PiecesFromSplits)
			fmt.Fprintf(w, "Batches:\t%d\n", summary.BatchesDispatched)
			fmt.Fprintf(w, "Duration:\t%s\n", summary.Duration.Round(time.Millisecond))
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.String("extensions", "", "comma-separated file extensions to ingest")
	f.Int("max-tokens", 0, "token ceiling per chunk and per embedding request")
	f.Int("max-chunks", -1, "chunk ceiling per embedding request, 0 for none")
	f.String("provider", "", "embedding provider: openai, gemini or local")
	f.String("model", "", "embedding model")
	f.Int("dimensions", 0, "embedding dimensions")
	f.String("cache", "", "embedding cache: memory, redis or none")
	return cmd
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			srv, err := mcp.NewServer(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer func() { _ = srv.Close() }()

			logger.Info("MCP server ready, listening on stdio",
				"version", version,
				"driver", storage.DriverName,
				"database", cfg.DatabasePath())

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				defer cancel()
				err := srv.Serve(gctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down")
				return nil
			})

			return g.Wait()
		},
	}

	f := cmd.Flags()
	f.String("provider", "", "embedding provider: openai, gemini or local")
	f.String("model", "", "embedding model")
	f.Int("dimensions", 0, "embedding dimensions")
	f.String("cache", "", "embedding cache: memory, redis or none")
	return cmd
}

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show statistics for the configured collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if _, err := os.Stat(cfg.DatabasePath()); err != nil {
				return fmt.Errorf("no index at %s", cfg.DatabasePath())
			}

			store, err := storage.NewSQLiteStorage(cfg.DatabasePath())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if all, _ := cmd.Flags().GetBool("all"); all {
				return printCollections(ctx, out, store)
			}

			collection, err := printStatus(ctx, out, store, cfg.CollectionName)
			if err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("file"); path != "" {
				return printFile(ctx, out, store, collection, path)
			}
			if files, _ := cmd.Flags().GetBool("files"); files {
				return printFiles(ctx, out, store, collection)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Bool("all", false, "list every collection in the index")
	f.Bool("files", false, "list the files of the collection")
	f.String("file", "", "show one file of the collection by its repository path")
	return cmd
}

func printStatus(ctx context.Context, out io.Writer, store storage.Storage, name string) (*storage.Collection, error) {
	collection, err := store.GetCollection(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notIngested(ctx, store, name)
	}
	if err != nil {
		return nil, err
	}

	status, err := store.GetStatus(ctx, collection.ID)
	if err != nil {
		return nil, err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Collection:\t%s\n", collection.Name)
	fmt.Fprintf(w, "Repository:\t%s\n", collection.RootPath)
	fmt.Fprintf(w, "Embedding:\t%s/%s (%d)\n", collection.Provider, collection.Model, collection.Dimension)
	fmt.Fprintf(w, "Generation:\t%d\n", collection.Generation)
	fmt.Fprintf(w, "Last indexed:\t%s\n", formatTime(collection.LastIndexedAt))
	fmt.Fprintf(w, "Files:\t%d\n", status.FilesCount)
	fmt.Fprintf(w, "Chunks:\t%d (%d split pieces)\n", status.ChunksCount, status.SplitChunks)
	fmt.Fprintf(w, "Embeddings:\t%d\n", status.EmbeddingsCount)
	fmt.Fprintf(w, "Index size:\t%.2f MB\n", status.IndexSizeMB)
	return collection, w.Flush()
}

// notIngested reports a missing collection along with the ones that exist
func notIngested(ctx context.Context, store storage.Storage, name string) error {
	collections, err := store.ListCollections(ctx)
	if err != nil || len(collections) == 0 {
		return fmt.Errorf("collection %q has not been ingested", name)
	}
	names := make([]string, len(collections))
	for i, c := range collections {
		names[i] = c.Name
	}
	return fmt.Errorf("collection %q has not been ingested (available: %s)", name, strings.Join(names, ", "))
}

func printCollections(ctx context.Context, out io.Writer, store storage.Storage) error {
	collections, err := store.ListCollections(ctx)
	if err != nil {
		return err
	}
	if len(collections) == 0 {
		return errors.New("no collections have been ingested")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFILES\tCHUNKS\tEMBEDDING\tLAST INDEXED")
	for _, c := range collections {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s/%s (%d)\t%s\n",
			c.Name, c.TotalFiles, c.TotalChunks, c.Provider, c.Model, c.Dimension, formatTime(c.LastIndexedAt))
	}
	return w.Flush()
}

func printFiles(ctx context.Context, out io.Writer, store storage.Storage, collection *storage.Collection) error {
	files, err := store.ListFiles(ctx, collection.ID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "FILE\tSIZE\tGENERATION")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%d\t%d\n", f.FilePath, f.SizeBytes, f.Generation)
	}
	return w.Flush()
}

func printFile(ctx context.Context, out io.Writer, store storage.Storage, collection *storage.Collection, path string) error {
	file, err := store.GetFile(ctx, collection.ID, filepath.ToSlash(path))
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("file %q is not part of collection %q", path, collection.Name)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File:\t%s\n", file.FilePath)
	fmt.Fprintf(w, "Size:\t%d bytes\n", file.SizeBytes)
	fmt.Fprintf(w, "SHA-256:\t%s\n", hex.EncodeToString(file.ContentHash[:]))
	fmt.Fprintf(w, "Generation:\t%d\n", file.Generation)
	fmt.Fprintf(w, "Last indexed:\t%s\n", formatTime(file.LastIndexedAt))
	return w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "repoingest %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
			fmt.Fprintf(out, "Python Parser: %v\n", parser.PythonAvailable)
		},
	}
}

// loadConfig layers the config file, environment and command flags, logs
// every fallback that was applied and returns the logger for the run
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, warnings, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	warnings = append(warnings, applyFlags(cmd, cfg)...)

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	for _, w := range warnings {
		logger.Warn(w)
	}
	return cfg, logger, nil
}

// applyFlags copies explicitly set flags over cfg and renormalizes it
func applyFlags(cmd *cobra.Command, cfg *config.Config) []string {
	f := cmd.Flags()
	if f.Changed("log-level") {
		cfg.LogLevel, _ = f.GetString("log-level")
	}
	if f.Changed("index-dir") {
		cfg.IndexDir, _ = f.GetString("index-dir")
	}
	if f.Changed("collection") {
		cfg.CollectionName, _ = f.GetString("collection")
	}
	if f.Lookup("extensions") != nil && f.Changed("extensions") {
		s, _ := f.GetString("extensions")
		cfg.Extensions = config.ParseExtensions(s)
	}
	if f.Lookup("max-tokens") != nil && f.Changed("max-tokens") {
		cfg.MaxTokensPerBatch, _ = f.GetInt("max-tokens")
	}
	if f.Lookup("max-chunks") != nil && f.Changed("max-chunks") {
		cfg.MaxChunksPerBatch, _ = f.GetInt("max-chunks")
	}
	if f.Lookup("provider") != nil && f.Changed("provider") {
		previous := cfg.EmbeddingProvider
		cfg.EmbeddingProvider, _ = f.GetString("provider")
		// A model defaulted for the previous provider is re-derived
		if !f.Changed("model") && cfg.EmbeddingModel == config.DefaultModel(previous) {
			cfg.EmbeddingModel = ""
		}
	}
	if f.Lookup("model") != nil && f.Changed("model") {
		cfg.EmbeddingModel, _ = f.GetString("model")
	}
	if f.Lookup("dimensions") != nil && f.Changed("dimensions") {
		cfg.EmbeddingDimensions, _ = f.GetInt("dimensions")
	}
	if f.Lookup("cache") != nil && f.Changed("cache") {
		cfg.Cache.Backend, _ = f.GetString("cache")
	}
	return cfg.Normalize()
}
