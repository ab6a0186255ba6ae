package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/kmarsden/fabricstash/internal/api"
	"github.com/kmarsden/fabricstash/internal/classify"
	"github.com/kmarsden/fabricstash/internal/config"
	"github.com/kmarsden/fabricstash/internal/extract"
	"github.com/kmarsden/fabricstash/internal/fetcher"
	"github.com/kmarsden/fabricstash/internal/ingest"
	"github.com/kmarsden/fabricstash/internal/media"
	"github.com/kmarsden/fabricstash/internal/paginate"
	"github.com/kmarsden/fabricstash/internal/schedule"
	"github.com/kmarsden/fabricstash/internal/store"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fabricstash",
		Short: "Fabric catalog with a scraping ingestion pipeline",
		Long: `fabricstash catalogs fabric products discovered on third-party websites.

Submit product or listing URLs and it fetches, parses, deduplicates,
persists, and illustrates each fabric with downloaded images. The serve
command runs the REST API plus a daily scheduled ingestion of the
configured URL list.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serveCmd runs the API server and the daily ingestion scheduler.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog API server and daily ingestion scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			pipe, err := buildPipeline(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer pipe.close()

			srv := api.NewServer(cfg.API.Port, pipe.catalog, pipe.orchestrator, pipe.images, logger)

			var sched *schedule.Scheduler
			if cfg.Schedule.Enabled {
				sched, err = schedule.New(&cfg.Schedule, pipe.orchestrator, logger)
				if err != nil {
					return err
				}
				sched.Start()
				defer sched.Stop()
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-stop:
				logger.Info("shutting down", "signal", sig.String())
				return srv.Shutdown(context.Background())
			}
		},
	}
}

// ingestCmd runs a one-shot ingestion batch from the command line.
func ingestCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "ingest [url...]",
		Short: "Ingest one or more URLs (or --all for the configured list)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("provide at least one URL or --all")
			}

			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			pipe, err := buildPipeline(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer pipe.close()

			urls := args
			if all {
				urls = cfg.Ingest.URLs
			}

			result := pipe.orchestrator.IngestBatch(cmd.Context(), urls)

			fmt.Printf("succeeded: %d, failed: %d (%.1fs)\n",
				len(result.Succeeded), len(result.Failed), result.Elapsed.Seconds())
			for _, o := range result.Succeeded {
				fmt.Printf("  ok   %s  (#%d %s)\n", o.URL, o.Fabric.ID, o.Fabric.Name)
			}
			for _, o := range result.Failed {
				fmt.Printf("  fail %s  %s\n", o.URL, o.Reason)
			}

			if result.Total() > 0 && len(result.Succeeded) == 0 {
				return fmt.Errorf("all %d URLs failed", len(result.Failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "ingest the full configured URL list")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("fabricstash", config.Version)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})
	return cmd
}

// setup loads and validates config and builds the root logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(&cfg.Logging), nil
}

// setupLogger builds a slog logger per the logging config.
func setupLogger(cfg *config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// pipeline bundles the wired ingestion components.
type pipeline struct {
	catalog      store.Catalog
	images       *media.Acquirer
	orchestrator *ingest.Orchestrator
	closeFns     []func()
}

func (p *pipeline) close() {
	for i := len(p.closeFns) - 1; i >= 0; i-- {
		p.closeFns[i]()
	}
}

// buildPipeline wires fetcher, classifier, extractor, paginator, image
// acquirer, store, and orchestrator from config.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	httpFetcher, err := fetcher.New(&cfg.Fetcher, logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	var catalog store.Catalog
	switch cfg.Store.Type {
	case "memory":
		catalog = store.NewMemory()
	default:
		catalog, err = store.NewMongo(ctx, &cfg.Store, logger)
		if err != nil {
			return nil, fmt.Errorf("connect store: %w", err)
		}
	}

	images, err := media.New(&cfg.Images, logger)
	if err != nil {
		return nil, fmt.Errorf("create image store: %w", err)
	}

	orchestrator := ingest.New(
		&cfg.Ingest,
		httpFetcher,
		classify.New(logger),
		extract.New(logger),
		paginate.New(httpFetcher, cfg.Ingest.MaxPages, logger),
		images,
		store.NewUpserter(catalog, logger),
		logger,
	)

	return &pipeline{
		catalog:      catalog,
		images:       images,
		orchestrator: orchestrator,
		closeFns: []func(){
			func() { httpFetcher.Close() },
			func() { catalog.Close(context.Background()) },
		},
	}, nil
}
