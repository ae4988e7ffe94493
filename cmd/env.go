package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/showdeck/importer/internal/chunker"
	"github.com/showdeck/importer/internal/dupes"
	"github.com/showdeck/importer/internal/extract"
	"github.com/showdeck/importer/internal/ingest"
	"github.com/showdeck/importer/internal/job"
	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/store"
	anthropicpkg "github.com/showdeck/importer/pkg/anthropic"
	"github.com/showdeck/importer/pkg/textextract"
)

// importerEnv holds the wired pipeline shared by the serve/worker/import
// commands.
type importerEnv struct {
	Store        store.Store
	Orchestrator *job.Orchestrator
	Builder      *ingest.Builder
	Temporal     client.Client // nil when not connected
}

// Close releases resources held by the environment.
func (e *importerEnv) Close() {
	if e.Temporal != nil {
		e.Temporal.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, extraction stack, matcher and orchestrator.
// When needTemporal is true a failed worker connection is fatal; otherwise
// the environment falls back to inline execution with a warning.
func initEnv(ctx context.Context, needTemporal bool) (*importerEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	aliases, err := model.LoadAliasTable()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var ai extract.AIExtractor
	if cfg.Anthropic.Key != "" {
		ai = extract.NewClaudeExtractor(
			anthropicpkg.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.Model,
			int64(cfg.Anthropic.MaxTokens),
		)
	} else {
		zap.L().Warn("IMPORTER_ANTHROPIC_KEY not set, AI-assisted extraction disabled")
	}

	extractor := extract.New(aliases, ai, extract.Options{
		AITimeout:           time.Duration(cfg.Extraction.AITimeoutSecs) * time.Second,
		Concurrency:         cfg.Extraction.Concurrency,
		AIRequestsPerSecond: cfg.Extraction.AIRequestsPerSecond,
	})

	catalog := dupes.NewCachedCatalog(st, time.Duration(cfg.Matching.CatalogTTLSecs)*time.Second)
	matcher := dupes.New(catalog, cfg.Matching.MinScore, cfg.Matching.TopN)

	pipeline := job.NewPipeline(
		chunker.New(cfg.Extraction.ChunkMaxChars, cfg.Extraction.ChunkOverlapChars),
		extractor,
		matcher,
	)

	var temporalClient client.Client
	var background job.Backgrounder
	temporalClient, err = client.Dial(client.Options{
		HostPort:  cfg.Worker.HostPort,
		Namespace: cfg.Worker.Namespace,
	})
	if err != nil {
		if needTemporal {
			_ = st.Close()
			return nil, eris.Wrap(err, "connect temporal")
		}
		zap.L().Warn("temporal unavailable, large jobs will run inline", zap.Error(err))
		temporalClient = nil
	} else {
		background = job.NewTemporalBackgrounder(
			temporalClient,
			cfg.Worker.TaskQueue,
			time.Duration(cfg.Worker.HealthTimeoutSec)*time.Second,
		)
	}

	orch := job.NewOrchestrator(st, pipeline, background, job.Thresholds{
		BackgroundWords:   cfg.Jobs.BackgroundWordThreshold,
		BackgroundSources: cfg.Jobs.BackgroundSourceThreshold,
		ReviewConfidence:  cfg.Jobs.ReviewConfidenceThreshold,
	})

	var extractClient textextract.Client
	if cfg.TextExtract.BaseURL != "" {
		extractClient = textextract.New(cfg.TextExtract.BaseURL, time.Duration(cfg.TextExtract.TimeoutSecs)*time.Second)
	}

	return &importerEnv{
		Store:        st,
		Orchestrator: orch,
		Builder:      ingest.NewBuilder(extractClient, aliases),
		Temporal:     temporalClient,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "", "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
