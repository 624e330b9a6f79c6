// main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gewnthar/pharmascrape/config"
	"github.com/gewnthar/pharmascrape/database"
	"github.com/gewnthar/pharmascrape/export"
	"github.com/gewnthar/pharmascrape/handlers"
	"github.com/gewnthar/pharmascrape/logger"
	"github.com/gewnthar/pharmascrape/metrics"
	"github.com/gewnthar/pharmascrape/scraper"
	"github.com/gewnthar/pharmascrape/services"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: standard locations)")
	once := flag.Bool("once", false, "run all sources once, print the summary and exit")
	only := flag.String("sources", "", "comma-separated source names to run (default: all enabled)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
		Env:       cfg.Log.Env,
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *once, splitList(*only)); err != nil {
		log.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, once bool, selected []string) error {
	doer, err := scraper.NewTransport(scraper.TransportOptions{
		Client:      scraper.NewHTTPClient(cfg.HTTP.Timeout),
		Retries:     cfg.HTTP.Retries,
		Concurrency: cfg.HTTP.Concurrency,
		BaseDelay:   cfg.HTTP.BaseDelay,
		MaxDelay:    cfg.HTTP.MaxDelay,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("building http transport: %w", err)
	}
	fetcher := scraper.NewFetcher(doer, cfg.HTTP.UserAgent)
	sources := scraper.BuildSources(cfg.EnabledSources(), fetcher, log)
	log.Info("sources configured", "count", len(sources))

	collector := metrics.New()
	orch := services.NewOrchestrator(services.Options{
		BatchSize:         cfg.Orchestrator.BatchSize,
		BatchPause:        cfg.Orchestrator.BatchPause,
		ItemTimeout:       cfg.Orchestrator.ItemTimeout,
		SourceConcurrency: cfg.Orchestrator.SourceConcurrency,
		Standardizer:      services.NewStandardizer(log),
		Metrics:           collector,
		Logger:            log,
	})

	opts := services.RunnerOptions{
		Sources:      sources,
		Orchestrator: orch,
		CombinedName: cfg.Export.CombinedName,
		Metrics:      collector,
		Logger:       log,
	}
	if cfg.Export.Enabled {
		opts.Sink = export.NewCSVSink(cfg.Export.Dir, log)
	}

	store, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	if store != nil {
		defer store.Close()
		opts.Store = store
	}
	runner := services.NewRunner(opts)

	if once {
		return runOnce(ctx, runner, selected)
	}
	return serve(ctx, cfg, log, runner, collector)
}

func runOnce(ctx context.Context, runner *services.Runner, selected []string) error {
	summary, err := runner.RunAll(ctx, selected)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, runner *services.Runner, collector *metrics.Collector) error {
	api := handlers.NewAPI(ctx, runner, collector.Handler(), log)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("server shutdown", "err", err)
	}
	// ctx is done, so a background run is winding down too.
	runner.Wait()
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
