package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/TFMV/sage/cmd/server/config"
	"github.com/TFMV/sage/cmd/server/middleware"
	"github.com/TFMV/sage/pkg/agent"
	"github.com/TFMV/sage/pkg/handlers"
	"github.com/TFMV/sage/pkg/infrastructure/metrics"
	"github.com/TFMV/sage/pkg/repositories/postgres"
	"github.com/TFMV/sage/pkg/services"
)

// Server is the NL2SQL HTTP server. It owns the database pool, the model
// client, and the service graph behind the API handlers.
type Server struct {
	config  *config.Config
	logger  zerolog.Logger
	metrics metrics.Collector

	pool       *pgxpool.Pool
	httpServer *http.Server
}

// New creates a server from configuration. The database is pinged during
// construction; an unreachable database fails fast.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	var collector metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector()
	} else {
		collector = metrics.NewNoOpCollector()
	}

	pool, err := postgres.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.ConnMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	srv := &Server{
		config:  cfg,
		logger:  logger,
		metrics: collector,
		pool:    pool,
	}

	// Repositories
	queryRepo := postgres.NewQueryRepository(pool, cfg.Database.QueryTimeout)
	metadataRepo := postgres.NewMetadataRepository(pool)

	// Services
	guard := services.NewQueryGuard(cfg.Guard.MaxRows,
		&loggerAdapter{logger: logger.With().Str("component", "query_guard").Logger()}, collector)
	optimizer := services.NewResultOptimizer(cfg.Optimizer.MaxRows, cfg.Optimizer.MaxCharsPerField,
		&loggerAdapter{logger: logger.With().Str("component", "result_optimizer").Logger()})
	schemaService := services.NewSchemaService(metadataRepo, cfg.Schema.CacheTTL,
		&loggerAdapter{logger: logger.With().Str("component", "schema_service").Logger()}, collector)
	tokens := services.NewTokenTracker(services.ModelPricing{
		Model:           cfg.Model.Name,
		PricePerMInput:  cfg.Model.PricePerMInput,
		PricePerMOutput: cfg.Model.PricePerMOutput,
	}, &loggerAdapter{logger: logger.With().Str("component", "token_tracker").Logger()}, collector)
	classifier := services.NewVisualizationClassifier(
		&loggerAdapter{logger: logger.With().Str("component", "visualization").Logger()})
	assembler := services.NewResponseAssembler(classifier,
		&loggerAdapter{logger: logger.With().Str("component", "response_assembler").Logger()}, collector)

	// Model client and reasoning loop
	llm, err := agent.NewGeminiClient(ctx, cfg.Model.APIKey, cfg.Model.Name)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	runner := agent.NewAgent(llm, guard, optimizer, schemaService, queryRepo, tokens,
		&loggerAdapter{logger: logger.With().Str("component", "agent").Logger()}, collector,
		agent.Options{
			MaxIterations:   cfg.Agent.MaxIterations,
			MaxRows:         cfg.Guard.MaxRows,
			MaxSchemaTables: cfg.Agent.MaxSchemaTables,
		})

	apiHandler := handlers.NewAPIHandler(runner, assembler, tokens, pool,
		&loggerAdapter{logger: logger.With().Str("component", "api_handler").Logger()}, collector)

	srv.httpServer = &http.Server{
		Addr:    cfg.Address,
		Handler: srv.buildRouter(apiHandler),
	}

	return srv, nil
}

func (s *Server) buildRouter(api *handlers.APIHandler) http.Handler {
	r := chi.NewRouter()

	recoverMW := middleware.NewRecoveryMiddleware(s.logger.With().Str("component", "recovery").Logger())
	logMW := middleware.NewLoggingMiddleware(s.logger.With().Str("component", "http").Logger())
	metricsMW := middleware.NewMetricsMiddleware(s.metrics)

	r.Use(recoverMW.Handler)
	r.Use(logMW.Handler)
	r.Use(metricsMW.Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", api.HandleHealth)
	r.Post("/api/ask", api.HandleAsk)
	r.Get("/api/stats", api.HandleStats)
	r.Get("/api/stats/export", api.HandleStatsExport)
	r.Post("/api/stats/reset", api.HandleStatsReset)

	if s.config.Metrics.Enabled {
		r.Method(http.MethodGet, s.config.Metrics.Path, promhttp.Handler())
	}

	return r
}

// Serve starts the HTTP listener and blocks until the server stops.
func (s *Server) Serve() error {
	s.logger.Info().
		Str("address", s.config.Address).
		Bool("metrics", s.config.Metrics.Enabled).
		Msg("Server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.pool.Close()
	s.logger.Info().Msg("Server shutdown complete")
	return err
}
