// Command ragchat-ingest loads a directory of markdown and text documents
// into the vector store used by the retrieve_context tool.
//
// Usage:
//
//	ragchat-ingest ./docs
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dataninja/ragchat/config"
	"github.com/dataninja/ragchat/ingest"
	"github.com/dataninja/ragchat/logging"
	"github.com/dataninja/ragchat/retrieval"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s <directory>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		return fmt.Errorf("exactly one directory argument is required")
	}
	root := flag.Arg(0)

	settings, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := retrieval.NewPool(ctx, settings.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	embedder := retrieval.NewOllamaEmbedder(func(o *retrieval.OllamaEmbedderOptions) {
		o.Model = settings.EmbedderModel
		o.BaseEndpoint = settings.OllamaEndpoint()
	})
	store := retrieval.NewStore(pool, embedder, func(o *retrieval.StoreOptions) {
		o.Table = settings.CollectionName
		o.Dimensions = settings.EmbedderDims
		o.Logger = logger
	})
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("prepare store schema: %w", err)
	}

	pipeline := ingest.NewPipeline(store, func(o *ingest.PipelineOptions) {
		o.ChunkSize = settings.ChunkSize
		o.ChunkOverlap = settings.ChunkOverlap
		o.Logger = logger
	})

	stats, err := pipeline.IngestDir(ctx, root)
	if err != nil {
		return err
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d files (%d chunks, %d skipped, %d failed) in %s; store now holds %d chunks\n",
		stats.FilesIngested, stats.ChunksWritten, stats.FilesSkipped, stats.FilesFailed,
		stats.Duration.Round(0), total)
	return nil
}
