// Command ragchat-server runs the chat HTTP API: the agent graph over the
// configured model provider, with the multiply and retrieve_context tools
// registered, served on the configured address.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dataninja/ragchat"
	"github.com/dataninja/ragchat/config"
	"github.com/dataninja/ragchat/logging"
	"github.com/dataninja/ragchat/retrieval"
	"github.com/dataninja/ragchat/server"
	"github.com/dataninja/ragchat/tool"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
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

	tools := []tool.Tool{tool.NewMultiplyTool(func(o *tool.FunctionToolOptions) {
		o.Logger = logger
	})}

	// Retrieval is optional: without a reachable Postgres the agent still
	// answers, it just has no retrieve_context tool.
	pool, err := retrieval.NewPool(ctx, settings.PostgresDSN)
	if err != nil {
		logger.Warn("postgres unavailable, starting without retrieval", "error", err.Error())
	} else {
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

		tools = append(tools, retrieval.NewRetrieveTool(store, func(o *retrieval.RetrieveToolOptions) {
			o.TopK = settings.TopK
			o.Logger = logger
		}))
	}

	assistant, err := ragchat.FromSettings(settings, func(o *ragchat.Options) {
		o.Tools = tools
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	srv := server.New(assistant, assistant, func(o *server.Options) {
		o.CORSOrigins = settings.CORSOrigins
		o.PublicConfig = settings.Public()
		o.Logger = logger
	})

	httpServer := &http.Server{
		Addr:              settings.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.listening", "addr", settings.HTTPAddr, "provider", settings.Provider, "model", settings.Model)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
