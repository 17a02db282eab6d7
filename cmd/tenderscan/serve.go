package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nao1215/tenderscan/internal/config"
	"github.com/nao1215/tenderscan/internal/crawler"
	"github.com/nao1215/tenderscan/internal/database"
	tlog "github.com/nao1215/tenderscan/internal/log"
	"github.com/nao1215/tenderscan/internal/model"
	"github.com/nao1215/tenderscan/internal/pipeline"
	"github.com/nao1215/tenderscan/internal/scheduler"
	"github.com/nao1215/tenderscan/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the crawler as a JSON API",
		Long: `Serve starts an HTTP server exposing the crawler:

  GET /                        health probe
  GET /endpoint/tenders?max=N  crawl and return up to N tenders
  GET /endpoint/runs           recent runs from the history database
  GET /endpoint/runs/{id}      one stored run with its records

With --schedule, a crawl of the configured size also runs periodically and
is stored in the history database.

Examples:
  tenderscan serve
  tenderscan serve --addr 127.0.0.1:9000 --max 10
  tenderscan serve --schedule "0 */6 * * *"`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("addr", "a", config.DefaultListenAddr,
		"Address to listen on")
	cmd.Flags().StringP("schedule", "s", "",
		`Cron expression for periodic crawls, e.g. "@every 6h"`)
	cmd.Flags().IntP("max", "n", config.DefaultMaxCount,
		"Default number of tenders per crawl")
	cmd.Flags().Bool("no-db", false,
		"Disable the history database")
	cmd.Flags().Bool("json-log", false,
		"Write logs as JSON")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.Schedule != "" {
		if _, err := scheduler.ParseSchedule(cfg.Schedule); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
	}

	logger := setupLogger(cfg)
	if jsonLog, _ := cmd.Flags().GetBool("json-log"); jsonLog {
		logger = tlog.NewJSON(os.Stderr, cfg.Verbose)
		slog.SetDefault(logger)
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runServe(ctx, cfg, logger)
}

// applyServeFlags copies explicitly set flags onto cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		v, err := flags.GetString("addr")
		if err != nil {
			return err
		}
		cfg.ListenAddr = v
	}
	if flags.Changed("schedule") {
		v, err := flags.GetString("schedule")
		if err != nil {
			return err
		}
		cfg.Schedule = v
	}
	if flags.Changed("max") {
		v, err := flags.GetInt("max")
		if err != nil {
			return err
		}
		cfg.MaxCount = v
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return err
	}
	if noDB {
		cfg.SaveToDB = false
	}
	return nil
}

// runServe serves the API, and the scheduled crawls if configured, until
// ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	driver, err := newDriver(cfg, logger)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithDefaultMax(cfg.MaxCount),
		server.WithBaseURL(driver.BaseURL()),
		server.WithLogger(logger),
	}

	var db *database.TenderDB
	if cfg.SaveToDB {
		db, err = openDB(cfg, true)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, server.WithStore(db))
	}

	if cfg.Schedule != "" {
		if db == nil {
			logger.Warn("scheduled crawls are not stored, the history database is disabled")
		}
		sched := scheduler.New(scheduledCrawl(driver, db, cfg.MaxCount, logger), scheduler.WithLogger(logger))
		if err := sched.Start(ctx, cfg.Schedule); err != nil {
			return err
		}
		defer func() {
			stopCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer stop()
			sched.Stop(stopCtx)
		}()
	}

	return server.New(driver, opts...).ListenAndServe(ctx, cfg.ListenAddr)
}

// scheduledCrawl returns the job run by the scheduler: one crawl of quota
// records, persisted when db is not nil.
func scheduledCrawl(driver *crawler.Driver, db *database.TenderDB, quota int, logger *slog.Logger) scheduler.Job {
	return func(ctx context.Context) error {
		pcfg := pipeline.DefaultPipelineConfig{Logger: logger}
		if db != nil {
			pcfg.Store = db
		}

		run := model.NewRun(driver.BaseURL(), quota)
		if err := pipeline.DefaultPipeline(driver, pcfg).Execute(ctx, run); err != nil {
			return err
		}
		logger.Info("scheduled crawl stored",
			"run", run.ID,
			"records", len(run.Records),
			"partial", run.Partial(),
		)
		return nil
	}
}
