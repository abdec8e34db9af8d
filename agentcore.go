// Package agentcore assembles the module's components from configuration:
// logger, telemetry, metrics, session store, agent orchestrator,
// long-running operation manager, and context compactor.
//
// Usage:
//
//	cfg, err := config.MustLoad("config.yaml"), or config.LoadFromEnv()
//	app, err := agentcore.New(cfg)
//	defer app.Close(context.Background())
//
//	app.Orchestrator.Register("job_analyzer", myAgent)
//	result, err := app.Orchestrator.Call(ctx, "job_analyzer", input, nil)
package agentcore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/intervu-ai/agentcore/compaction"
	"github.com/intervu-ai/agentcore/config"
	"github.com/intervu-ai/agentcore/internal/metrics"
	"github.com/intervu-ai/agentcore/internal/telemetry"
	"github.com/intervu-ai/agentcore/llm"
	"github.com/intervu-ai/agentcore/logging"
	"github.com/intervu-ai/agentcore/longrunning"
	"github.com/intervu-ai/agentcore/orchestrator"
	"github.com/intervu-ai/agentcore/session"
)

// App holds the assembled components. Fields are exported for direct use;
// the zero value is not usable, construct with New.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Store        session.Store
	Orchestrator *orchestrator.Orchestrator
	Operations   *longrunning.Manager
	Compactor    *compaction.Compactor
	Provider     llm.Provider
	Metrics      *metrics.Collector

	providers *telemetry.Providers
}

// New assembles an App from cfg. A nil cfg uses the defaults.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	logger := logging.New(cfg.Log)

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	store, err := session.NewStore(storeConfig(cfg.Session), logger)
	if err != nil {
		shutdownErr := providers.Shutdown(context.Background())
		return nil, errors.Join(fmt.Errorf("failed to create session store: %w", err), shutdownErr)
	}

	collector := metrics.NewCollector("agentcore", logger)

	provider := llm.NewGeminiProvider(llm.GeminiConfig{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.DefaultModel,
		Timeout:      cfg.LLM.Timeout,
	}, logger)

	summarizer := llm.NewAgent("context_compactor",
		fmt.Sprintf("You are a context compaction specialist. Summarize and condense "+
			"information while preserving the most important details. "+
			"Target length: %d tokens or less. Be concise but comprehensive.",
			cfg.LLM.Compaction.MaxTokens),
		provider, logger,
		llm.WithTemperature(float32(cfg.LLM.Temperature)),
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Store:        store,
		Orchestrator: orchestrator.New(logger, orchestrator.WithRecorder(collector)),
		Operations:   longrunning.NewManager(store, logger, longrunning.WithRecorder(collector)),
		Compactor:    compaction.New(cfg.LLM.Compaction.MaxTokens, summarizer, logger),
		Provider:     provider,
		Metrics:      collector,
		providers:    providers,
	}, nil
}

// Close flushes telemetry and closes the session store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.providers != nil {
		if err := a.providers.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Logger != nil {
		// Sync can fail on stderr, ignore.
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}

func storeConfig(cfg config.SessionConfig) session.Config {
	return session.Config{
		Type: session.StoreType(cfg.Type),
		Redis: session.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		},
		Mongo: session.MongoConfig{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		},
		Postgres: session.PostgresConfig{
			DSN:             cfg.Postgres.DSN(),
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		},
	}
}
