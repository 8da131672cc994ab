// Package tessera is the public API for embedding the insight fusion
// service.
//
// Consumers construct an App and either run the full HTTP/MCP surface:
//
//	app, err := tessera.New(
//	    tessera.WithVersion(version),
//	    tessera.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// or call the engine directly through App.Fuse and App.Analytics without
// starting any server.
//
// The import graph enforces a strict no-cycle rule: tessera (root) imports
// internal/*, but internal/* never imports the root. Public types (Insight,
// Fused, Analytics) are standalone structs; the conversion helpers live here
// because this is the only file that sees both sides of the boundary.
package tessera

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tessera-health/tessera/internal/analytics"
	"github.com/tessera-health/tessera/internal/auth"
	"github.com/tessera-health/tessera/internal/compat"
	"github.com/tessera-health/tessera/internal/config"
	"github.com/tessera-health/tessera/internal/fusion"
	"github.com/tessera-health/tessera/internal/mcp"
	"github.com/tessera-health/tessera/internal/model"
	"github.com/tessera-health/tessera/internal/ratelimit"
	"github.com/tessera-health/tessera/internal/server"
	"github.com/tessera-health/tessera/internal/store"
	"github.com/tessera-health/tessera/internal/worker"
	"github.com/tessera-health/tessera/migrations"

	"github.com/google/uuid"
)

// App is a fully wired tessera service instance.
type App struct {
	cfg          config.Config
	logger       *slog.Logger
	store        store.Store
	engine       *fusion.Engine
	persister    *worker.Persister
	analyticsSvc *analytics.Service
	srv          *server.Server
	limiter      *ratelimit.Limiter
	version      string
}

// New builds an App from environment configuration plus options.
// The store is selected in order: explicit memory option, DATABASE_URL
// (Postgres), TESSERA_SQLITE_PATH (embedded), then in-memory.
func New(opts ...Option) (*App, error) {
	var o resolvedOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("tessera: load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.sqlitePath != "" {
		cfg.SQLitePath = o.sqlitePath
	}
	if o.apiKey != "" {
		cfg.APIKey = o.apiKey
	}
	if o.jwtSecret != "" {
		cfg.JWTSecret = o.jwtSecret
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	st, err := openStore(cfg, o.memoryStore, logger)
	if err != nil {
		return nil, err
	}

	persister := worker.New(st, cfg.CacheTTL, logger)
	engine := fusion.New(compat.NewDefault(), model.FusionDefaults{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		TemporalWindow:      cfg.TemporalWindow,
	}, persister, logger)
	analyticsSvc := analytics.New(st)

	jwtMgr, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("tessera: %w", err)
	}
	var apiKeyHash string
	if cfg.APIKey != "" {
		apiKeyHash, err = auth.HashAPIKey(cfg.APIKey)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("tessera: %w", err)
		}
	}

	limiter := ratelimit.New(cfg.FuseRatePerSecond, cfg.FuseBurst)
	mcpSrv := mcp.New(engine, analyticsSvc, version, logger)

	handlers := server.NewHandlers(server.HandlersDeps{
		Engine:       engine,
		AnalyticsSvc: analyticsSvc,
		Store:        st,
		JWTMgr:       jwtMgr,
		APIKeyHash:   apiKeyHash,
		JWTTTL:       cfg.JWTExpiration,
		Logger:       logger,
		Version:      version,
	})
	srv := server.New(server.Config{
		Handlers:            handlers,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &App{
		cfg:          cfg,
		logger:       logger,
		store:        st,
		engine:       engine,
		persister:    persister,
		analyticsSvc: analyticsSvc,
		srv:          srv,
		limiter:      limiter,
		version:      version,
	}, nil
}

// openStore selects and initializes the persistence backend.
func openStore(cfg config.Config, forceMemory bool, logger *slog.Logger) (store.Store, error) {
	switch {
	case forceMemory:
		return store.NewMemory(), nil
	case cfg.DatabaseURL != "":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("tessera: %w", err)
		}
		if err := pg.RunMigrations(ctx, migrations.FS); err != nil {
			pg.Close()
			return nil, fmt.Errorf("tessera: %w", err)
		}
		return pg, nil
	case cfg.SQLitePath != "":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sq, err := store.NewSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("tessera: %w", err)
		}
		return sq, nil
	default:
		logger.Warn("no DATABASE_URL or TESSERA_SQLITE_PATH configured, using in-memory store")
		return store.NewMemory(), nil
	}
}

// Run serves the HTTP/MCP surface and the persistence worker until ctx is
// cancelled, then shuts both down and closes the store.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.srv.Run(gctx) })
	g.Go(func() error {
		if err := a.persister.Run(gctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	err := g.Wait()
	a.limiter.Close()
	if cerr := a.store.Close(); cerr != nil {
		a.logger.Warn("store close failed", "error", cerr)
	}
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// Fuse runs one fusion call against the embedded engine. Side effects
// (cache write, history append) queue on the persistence worker while Run
// is active; embedders that never call Run get them written synchronously,
// so Analytics stays consistent either way.
func (a *App) Fuse(ctx context.Context, insights []Insight, opts FuseOptions) (Fused, error) {
	in := make([]model.AgentInsight, len(insights))
	for i, ins := range insights {
		in[i] = model.AgentInsight{
			Agent:           model.AgentRole(ins.Agent),
			Content:         ins.Content,
			Confidence:      ins.Confidence,
			Recommendations: ins.Recommendations,
			GeneratedAt:     ins.GeneratedAt,
			SupportingData:  ins.SupportingData,
		}
	}
	fctx := model.FusionContext{
		UserID:              opts.UserID,
		DomainFocus:         opts.DomainFocus,
		TemporalWindow:      opts.TemporalWindow,
		ConfidenceThreshold: opts.ConfidenceThreshold,
		ConflictPolicy:      model.ConflictPolicy(opts.ConflictPolicy),
		Strategy:            model.FusionStrategy(opts.Strategy),
		Preferences:         opts.Preferences,
	}
	fused, err := a.engine.Fuse(ctx, in, fctx)
	if err != nil {
		return Fused{}, err
	}
	return toPublicFused(fused), nil
}

// Analytics returns the per-user fusion summary.
func (a *App) Analytics(ctx context.Context, userID uuid.UUID) (Analytics, error) {
	sum, err := a.analyticsSvc.Summary(ctx, userID)
	if err != nil {
		return Analytics{}, err
	}
	agents := make([]AgentUsage, len(sum.MostUsedAgents))
	for i, u := range sum.MostUsedAgents {
		agents[i] = AgentUsage{Agent: string(u.Agent), Count: u.Count}
	}
	return Analytics{
		TotalFusions:      sum.TotalFusions,
		AverageConfidence: sum.AverageConfidence,
		ConfidenceTrend:   sum.ConfidenceTrend,
		MostUsedAgents:    agents,
		FusionFrequency:   sum.FusionFrequency,
		LastFusionAt:      sum.LastFusionAt,
	}, nil
}

func toPublicFused(f model.FusedInsight) Fused {
	agents := make([]string, len(f.ContributingAgents))
	for i, a := range f.ContributingAgents {
		agents[i] = string(a)
	}
	return Fused{
		ID:                 f.ID,
		UnifiedContent:     f.UnifiedContent,
		ContributingAgents: agents,
		FusionMethod:       f.FusionMethod,
		ConfidenceScore:    f.ConfidenceScore,
		ConsensusLevel:     f.ConsensusLevel,
		ConflictIndicators: f.ConflictIndicators,
		MetaInsights:       f.MetaInsights,
		Recommendations:    f.Recommendations,
		DataSources:        f.DataSources,
		CreatedAt:          f.CreatedAt,
		UserID:             f.UserID,
	}
}
