package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/taxrag/tax-rag-crawler/internal/api"
	"github.com/taxrag/tax-rag-crawler/internal/crawler"
	"github.com/taxrag/tax-rag-crawler/internal/database"
	"github.com/taxrag/tax-rag-crawler/internal/embedding"
	"github.com/taxrag/tax-rag-crawler/internal/ingest"
	"github.com/taxrag/tax-rag-crawler/internal/logging"
	"github.com/taxrag/tax-rag-crawler/internal/publisher"
	"github.com/taxrag/tax-rag-crawler/internal/scrapers"
	"github.com/taxrag/tax-rag-crawler/internal/storage"
	"github.com/taxrag/tax-rag-crawler/internal/store"
)

type crawlFlags struct {
	site     string
	maxDepth int
	deep     bool
	dryRun   bool
}

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	flags := &crawlFlags{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl of a configured tax site",
		Long: `Runs a single crawl of one site profile, extracting page text and
ingesting it into the vector store. With the vector store disabled the
extracted documents are written to the local document directory instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.site, "site", "", "site profile to crawl (required)")
	cmd.Flags().IntVar(&flags.maxDepth, "max-depth", -1, "override the profile's maximum link depth")
	cmd.Flags().BoolVar(&flags.deep, "deep", false, "raise depth and request limits for a full re-ingest")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "resolve and print the effective configuration without crawling")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func runCrawl(cmd *cobra.Command, flags *crawlFlags) error {
	logger := logging.L

	cfg, err := resolveConfig(flags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if flags.dryRun {
		payload, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return nil
	}

	if err := validateCredentials(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID), zap.String("site", flags.site))

	pipeline, history, closers, err := buildPipeline(ctx, cfg, runID, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, close := range closers {
			if cerr := close(); cerr != nil {
				logger.Warn("shutdown error", zap.Error(cerr))
			}
		}
	}()

	robots := crawler.NewRobotsEnforcer(cfg.UserAgent, logger)
	gate := crawler.NewGate(cfg, robots)
	fetcher, err := crawler.NewCollyFetcher(cfg, crawler.NewExponentialRetryPolicy(), logger)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}

	engine, err := crawler.NewEngine(cfg, fetcher, gate, crawler.DefaultHandler{}, pipeline, logger)
	if err != nil {
		return err
	}

	stopServer := startServer(engine, logger)
	defer stopServer()

	snap, runErr := engine.Run(ctx)

	if err := crawler.AppendMetrics(viper.GetString("metrics.log_path"), snap); err != nil {
		logger.Warn("metrics log append failed", zap.Error(err))
	}
	if history != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := history.SaveRun(saveCtx, snap); err != nil {
			logger.Warn("run history save failed", zap.Error(err))
		}
		cancel()
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run crawl: %w", runErr)
	}
	logger.Info("crawl finished",
		zap.Int("processed", snap.URLsProcessed),
		zap.Float64("success_rate", snap.SuccessRate),
	)
	return nil
}

// resolveConfig layers the site profile, Viper overrides, and flags.
func resolveConfig(flags *crawlFlags) (crawler.Config, error) {
	profile, err := scrapers.Lookup(flags.site)
	if err != nil {
		return crawler.Config{}, err
	}
	cfg := crawler.ApplyOverrides(profile.Config(), viper.GetViper())
	if flags.maxDepth >= 0 {
		cfg.MaxDepth = flags.maxDepth
	}
	if flags.deep {
		cfg = cfg.Deepened()
	}
	return cfg, nil
}

// validateCredentials refuses to start a store-backed run with missing
// secrets; a crawl that cannot persist anything is wasted load on the
// target sites.
func validateCredentials() error {
	if !viper.GetBool("ingest.use_qdrant") {
		return nil
	}
	for _, key := range []string{"qdrant.url", "qdrant.api_key", "openai.api_key"} {
		if viper.GetString(key) == "" {
			return crawler.NewConfigError(key, "required when ingest.use_qdrant is true")
		}
	}
	return nil
}

// buildPipeline wires the ingest pipeline and its optional side channels.
// The history provider, when configured, is returned separately so the run
// summary can be saved after the crawl. The closers shut everything down in
// order.
func buildPipeline(
	ctx context.Context,
	cfg crawler.Config,
	runID string,
	logger *zap.Logger,
) (*ingest.Pipeline, database.Provider, []func() error, error) {
	var closers []func() error

	opts := ingest.Options{
		Chunker: embedding.NewChunker(
			viper.GetInt("ingest.chunk_size"),
			viper.GetInt("ingest.chunk_overlap"),
		),
	}
	batchSize := 0

	if viper.GetBool("ingest.use_qdrant") {
		embedder, err := embedding.NewOpenAIClient(viper.GetString("openai.api_key"), logger)
		if err != nil {
			return nil, nil, closers, fmt.Errorf("init embedder: %w", err)
		}
		vectors, err := store.NewQdrantStore(store.QdrantConfig{
			URL:        viper.GetString("qdrant.url"),
			APIKey:     viper.GetString("qdrant.api_key"),
			Collection: cfg.Collection,
			Source:     cfg.Source,
		}, logger)
		if err != nil {
			return nil, nil, closers, fmt.Errorf("init vector store: %w", err)
		}
		if err := vectors.ValidateCollection(ctx); err != nil {
			return nil, nil, closers, fmt.Errorf("validate collection: %w", err)
		}
		opts.Embedder = embedder
		opts.Vectors = vectors
		batchSize = viper.GetInt("ingest.embedding_batch_size")
	} else {
		sink, err := store.NewLocalDocumentSink(viper.GetString("ingest.local_store_dir"), logger)
		if err != nil {
			return nil, nil, closers, fmt.Errorf("init local sink: %w", err)
		}
		opts.Sink = sink
	}

	if viper.GetBool("archive.enabled") {
		archive, err := buildArchive(ctx, logger)
		if err != nil {
			return nil, nil, closers, err
		}
		opts.Archive = archive
		closers = append(closers, archive.Close)
	}

	var history database.Provider
	if dsn := viper.GetString("database.dsn"); dsn != "" {
		pg, err := database.NewPostgresProvider(ctx, dsn)
		if err != nil {
			return nil, nil, closers, fmt.Errorf("init run history: %w", err)
		}
		history = pg
		opts.History = pg
		closers = append(closers, func() error {
			pg.Close()
			return nil
		})
	}

	project := viper.GetString("pubsub.project_id")
	topic := viper.GetString("pubsub.topic_id")
	if project != "" && topic != "" {
		events, err := publisher.NewPubSubPublisher(ctx, project, topic)
		if err != nil {
			return nil, nil, closers, fmt.Errorf("init publisher: %w", err)
		}
		opts.Events = events
		closers = append(closers, events.Close)
	}

	pipeline, err := ingest.New(ingest.Config{
		RunID:     runID,
		CrawlType: cfg.CrawlType,
		BatchSize: batchSize,
	}, opts, logger)
	if err != nil {
		return nil, nil, closers, err
	}
	return pipeline, history, closers, nil
}

func buildArchive(ctx context.Context, logger *zap.Logger) (storage.Provider, error) {
	if bucket := viper.GetString("archive.bucket"); bucket != "" {
		archive, err := storage.NewGCSProvider(ctx, bucket, logger)
		if err != nil {
			return nil, fmt.Errorf("init archive bucket: %w", err)
		}
		return archive, nil
	}
	archive, err := storage.NewLocalProvider(viper.GetString("archive.local_dir"))
	if err != nil {
		return nil, fmt.Errorf("init archive dir: %w", err)
	}
	return archive, nil
}

// startServer exposes health and metrics for the duration of the run.
func startServer(engine *crawler.Engine, logger *zap.Logger) func() {
	if !viper.GetBool("server.enabled") {
		return func() {}
	}
	addr := viper.GetString("server.addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(engine, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("ops server stopped", zap.Error(err))
		}
	}()
	logger.Info("ops server listening", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("ops server shutdown failed", zap.Error(err))
		}
	}
}
