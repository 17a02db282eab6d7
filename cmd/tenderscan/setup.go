package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/tenderscan/internal/config"
	"github.com/nao1215/tenderscan/internal/crawler"
	"github.com/nao1215/tenderscan/internal/database"
	tlog "github.com/nao1215/tenderscan/internal/log"
	"github.com/spf13/cobra"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfig builds the configuration from defaults, the config file and
// the environment. Command flags are applied by each command afterwards.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// setupLogger creates the redacting stderr logger and installs it as default.
func setupLogger(cfg *config.Config) *slog.Logger {
	logger := tlog.New(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// newDriver wires the HTTP client, fetcher and pagination driver from cfg.
func newDriver(cfg *config.Config, logger *slog.Logger) (*crawler.Driver, error) {
	clientOpts := []crawler.ClientOption{crawler.WithHeaders(cfg.Headers)}
	if cfg.Proxy != "" {
		clientOpts = append(clientOpts, crawler.WithProxy(cfg.Proxy))
	}

	client, err := crawler.NewHTTPClient(cfg.Timeout, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	fetcher := crawler.NewHTTPFetcher(client,
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithRetryPolicy(crawler.NewRetryPolicy(cfg.MaxRetries)),
		crawler.WithFetcherLogger(logger),
	)

	return crawler.NewDriver(fetcher,
		crawler.WithBaseURL(cfg.BaseURL),
		crawler.WithPageRange(cfg.StartPage, cfg.LastPage),
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithDriverLogger(logger),
	), nil
}

// openDB opens the history database in cfg.DBDir.
func openDB(cfg *config.Config, create bool) (*database.TenderDB, error) {
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = create
	db, err := database.Open(cfg.DBDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
