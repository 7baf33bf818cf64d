package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/agscout/agscout/internal/discover"
	"github.com/agscout/agscout/internal/enrich"
	"github.com/agscout/agscout/internal/extract"
	"github.com/agscout/agscout/internal/fetch"
	"github.com/agscout/agscout/internal/score"
	"github.com/agscout/agscout/internal/store"
)

// pipelineEnv holds the initialized store, HTTP client, and pipeline stages
// shared by the discover/enrich/serve commands.
type pipelineEnv struct {
	Store        store.Store
	Client       *fetch.Client
	Engine       *score.Engine
	Orchestrator *discover.Orchestrator
	Worker       *enrich.Worker
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates config for the given mode, opens and migrates the store,
// and wires the pipeline stages. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	client := fetch.NewClient(fetch.Options{
		Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		HostRate:    rate.Limit(cfg.Fetch.HostRate),
		HostBurst:   cfg.Fetch.HostBurst,
		Blocklist:   cfg.Fetch.Blocklist,
		UserAgent:   cfg.Fetch.UserAgent,
		MaxBodySize: int64(cfg.Fetch.MaxBodyKB) * 1024,
	})

	extractor := extract.New(extract.Config{
		Synthesize:    cfg.Extract.Synthesize,
		MaxCandidates: cfg.Extract.MaxCandidates,
		Industry:      cfg.Extract.Industry,
	})

	engine := score.NewEngine(score.DefaultWeights(), score.Thresholds{
		AcceptScore: cfg.Validation.AcceptScore,
		ValidScore:  cfg.Validation.ValidScore,
	})

	worker := enrich.NewWorker(client, st, enrich.Options{
		Concurrency: cfg.Enrich.Concurrency,
		MaxAge:      time.Duration(cfg.Enrich.MaxAgeHours) * time.Hour,
		MaxEmails:   cfg.Enrich.MaxEmails,
		MaxPhones:   cfg.Enrich.MaxPhones,
	})

	return &pipelineEnv{
		Store:        st,
		Client:       client,
		Engine:       engine,
		Orchestrator: discover.New(client, extractor, engine, st, nil),
		Worker:       worker,
	}, nil
}
