package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Anonymous1223334444/mediServe/internal/adapters/driving/api"
	"github.com/Anonymous1223334444/mediServe/internal/core/services"
	"github.com/Anonymous1223334444/mediServe/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Starts the HTTP API serving the query endpoint, the ingestion
trigger, corpus administration and Prometheus metrics. When the watcher
is enabled in the configuration, corpus directories are monitored and
index consistency checks run automatically after file changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	addr := rt.cfg.Server.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if rt.cfg.Watcher.Enabled {
		watcher := services.NewCorpusWatcher(rt.corpora, rt.cfg.Watcher.Debounce())
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("corpus watcher stopped: %v", err)
			}
		}()
	}

	server := api.New(api.Services{
		Answer:    rt.answerer,
		Retrieval: rt.retriever,
		Indexing:  rt.pipeline,
		Corpora:   rt.corpora,
	}, rt.collector.Handler())

	if err := server.Run(addr); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
