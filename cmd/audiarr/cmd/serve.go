package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/audiarr/internal/database"
	"github.com/jmylchreest/audiarr/internal/ffmpeg"
	internalhttp "github.com/jmylchreest/audiarr/internal/http"
	"github.com/jmylchreest/audiarr/internal/http/handlers"
	"github.com/jmylchreest/audiarr/internal/metadata"
	"github.com/jmylchreest/audiarr/internal/observability"
	"github.com/jmylchreest/audiarr/internal/pipeline"
	"github.com/jmylchreest/audiarr/internal/queue"
	"github.com/jmylchreest/audiarr/internal/repository"
	"github.com/jmylchreest/audiarr/internal/selector"
	"github.com/jmylchreest/audiarr/internal/version"
	"github.com/jmylchreest/audiarr/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the audiarr daemon",
	Long: `Start the audiarr HTTP server and worker pool.

The daemon provides:
- Sonarr/Radarr webhook receivers at /webhook/sonarr and /webhook/radarr
- REST API for the job queue and batch processing
- Health check endpoint and OpenAPI documentation at /docs

Jobs are persisted in the database, so queued work survives restarts.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "host to bind to (overrides api.host)")
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides api.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	if cmd.Flags().Changed("host") {
		cfg.API.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.API.Port, _ = cmd.Flags().GetInt("port")
	}

	// Initialize database
	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	// Postgres and MySQL connections open lazily; fail now rather than on
	// the first webhook.
	if err := db.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("pinging %s database: %w", db.Driver(), err)
	}

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db.DB)
	cacheRepo := repository.NewMetadataCacheRepository(db.DB)

	// Initialize the processing pipeline
	prober := ffmpeg.NewProber(cfg.Tools.FFprobe())
	sel := selector.New(cfg, logger)
	mkv := ffmpeg.NewMKVPropEdit(cfg.Tools.Mkvpropedit(), prober)
	mp4 := ffmpeg.NewMP4Remux(cfg.Tools.FFmpeg(), prober).WithTimeout(cfg.Processing.Timeout())
	pipe := pipeline.New(prober, sel, mkv, mp4, cfg, observability.WithComponent(logger, "pipeline"))

	// Initialize the queue and worker pool
	q := queue.NewManager(jobRepo, prober, cfg, observability.WithComponent(logger, "queue"))
	pool := worker.NewPool(q, pipe, cacheRepo, cfg, observability.WithComponent(logger, "worker"))

	// Initialize metadata resolution
	var lookup metadata.MediaLookup
	if cfg.TMDB.Enabled && cfg.TMDB.APIKey != "" {
		lookup = metadata.NewTMDBClient(cfg.TMDB, cacheRepo, logger)
		logger.Info("tmdb metadata resolution enabled")
	} else {
		logger.Info("tmdb disabled, using payload languages and priority lists only")
	}
	resolver := metadata.NewResolver(lookup, logger)
	pathMapper := metadata.NewPathMapper(cfg.PathMappings, logger)

	// Initialize HTTP server
	serverConfig := internalhttp.DefaultServerConfig()
	serverConfig.Host = cfg.API.Host
	serverConfig.Port = cfg.API.Port
	serverConfig.CORSOrigins = cfg.API.CORSOrigins
	if cfg.API.ReadTimeout > 0 {
		serverConfig.ReadTimeout = cfg.API.ReadTimeout
	}
	if cfg.API.WriteTimeout > 0 {
		serverConfig.WriteTimeout = cfg.API.WriteTimeout
	}
	if cfg.API.ShutdownTimeout > 0 {
		serverConfig.ShutdownTimeout = cfg.API.ShutdownTimeout
	}
	server := internalhttp.NewServer(serverConfig, observability.WithComponent(logger, "http"), version.Version)

	// Register handlers
	healthHandler := handlers.NewHealthHandler(version.Version).
		WithDB(db.DB).
		WithTools(ffmpeg.NewToolChecker(), cfg.Tools).
		WithQueue(q)
	healthHandler.Register(server.API())

	webhookHandler := handlers.NewWebhookHandler(q, resolver, pathMapper, cfg.API.WebhookSecret, logger)
	webhookHandler.Register(server.API())

	queueHandler := handlers.NewQueueHandler(q, pool)
	queueHandler.Register(server.API())

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Start workers before accepting requests; Start also fails jobs
	// orphaned by a previous run.
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("starting worker pool: %w", err)
	}
	defer pool.Stop()

	logger.Info("starting audiarr server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Version),
		slog.Bool("webhook_auth", cfg.API.WebhookSecret != ""),
		slog.Int("workers", cfg.Processing.WorkerCount),
	)

	return server.ListenAndServe(ctx)
}
