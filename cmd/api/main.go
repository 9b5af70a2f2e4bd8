package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"example.com/carbontracker/internal/api"
	"example.com/carbontracker/internal/auth"
	"example.com/carbontracker/internal/config"
	"example.com/carbontracker/internal/domain"
	"example.com/carbontracker/internal/logging"
	"example.com/carbontracker/internal/outbox"
	"example.com/carbontracker/internal/persistence/memory"
	"example.com/carbontracker/internal/persistence/postgres"
	httptransport "example.com/carbontracker/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := logging.Init("carbon-api", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("carbon-api exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	calc, err := impactCalculator(cfg)
	if err != nil {
		return err
	}

	var (
		store      domain.Store
		dispatcher *outbox.Dispatcher
	)
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		store = postgres.NewStore(pool)

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()
		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(logger.With().Str("component", "outbox").Logger()))
		go dispatcher.Start(ctx)
	case config.StoreMemory:
		logger.Warn().Msg("using in-memory store, data is lost on restart and no events are published")
		store = memory.NewStore()
	default:
		return errors.New("unknown STORE_BACKEND " + cfg.StoreBackend)
	}

	service := domain.NewService(store,
		domain.WithImpactCalculator(calc),
		domain.WithLeaderboardSize(cfg.LeaderboardSize),
	)

	mux := http.NewServeMux()
	api.NewHandler(service).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, nil)
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.Chain(mux,
			httptransport.RequestLogger(logger),
			httptransport.CORS(cfg.CORSOrigin),
			authMiddleware.Wrap,
		))

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.HTTPAddress).Str("store", cfg.StoreBackend).Msg("carbon-api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
	return nil
}

func impactCalculator(cfg config.Config) (*domain.ImpactCalculator, error) {
	if cfg.EmissionFactorsFile == "" {
		return domain.NewImpactCalculator(domain.DefaultFactorTable()), nil
	}
	table, err := domain.LoadFactorTable(cfg.EmissionFactorsFile)
	if err != nil {
		return nil, err
	}
	return domain.NewImpactCalculator(table), nil
}
