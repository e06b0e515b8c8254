package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	schoolshandler "github.com/zenGate-Global/schoolspace/domains/schools/be/handler"
	schoolsprov "github.com/zenGate-Global/schoolspace/domains/schools/be/provisioning"
	schoolsrepo "github.com/zenGate-Global/schoolspace/domains/schools/be/repo"
	schoolsservice "github.com/zenGate-Global/schoolspace/domains/schools/be/service"
	usershandler "github.com/zenGate-Global/schoolspace/domains/users/be/handler"
	usersrepo "github.com/zenGate-Global/schoolspace/domains/users/be/repo"
	usersservice "github.com/zenGate-Global/schoolspace/domains/users/be/service"
	"github.com/zenGate-Global/schoolspace/platform/go/access"
	platformlogging "github.com/zenGate-Global/schoolspace/platform/go/logging"
	platformmiddleware "github.com/zenGate-Global/schoolspace/platform/go/middleware"
	"github.com/zenGate-Global/schoolspace/platform/go/persistence"
	"github.com/zenGate-Global/schoolspace/platform/go/telemetry"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant/cache"
	tenantmiddleware "github.com/zenGate-Global/schoolspace/platform/go/tenant/middleware"
)

const serviceName = "schoolspace-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := tenant.ValidateNamespace(cfg.SharedSchema); err != nil {
		log.Fatalf("invalid SHARED_SCHEMA: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
		Console:   cfg.developmentLike(),
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("init tracer", zap.Error(err))
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString:     cfg.DatabaseURL,
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		SharedSchema:   cfg.SharedSchema,
		ResetOnRelease: true,
	})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	exec := persistence.NewScopedExecutor(persistence.ScopedExecutorConfig{
		Pool:           pool,
		SharedSchema:   cfg.SharedSchema,
		AcquireTimeout: cfg.DBAcquireWait,
		Logger:         logger,
	})

	bus, closeBus := buildBus(ctx, cfg, logger)
	defer closeBus()

	tenantCache, err := cache.New(cache.Config{
		TTL:        cfg.CacheTTL,
		MaxEntries: cfg.CacheMaxKeys,
		Bus:        bus,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("init tenant cache", zap.Error(err))
	}
	defer tenantCache.Close()

	go func() {
		if err := tenantCache.Listen(ctx); err != nil {
			logger.Error("tenant invalidation listener stopped", zap.Error(err))
		}
	}()

	directory := persistence.NewDirectoryStore(exec)
	resolver := tenantmiddleware.NewResolver(directory, tenantCache, tenantmiddleware.Config{
		ReservedSubdomains: cfg.Reserved,
		AllowDevOverride:   cfg.developmentLike(),
		DevHeader:          cfg.DevHeader,
		DevQueryParam:      cfg.DevQueryParam,
		TrustSessionClaims: cfg.TrustClaims,
		Logger:             logger,
	})
	verifier := access.NewVerifier(persistence.NewMembershipStore(exec), logger)

	schoolService := schoolsservice.New(schoolsservice.Config{
		Repo:               schoolsrepo.NewPostgresRepository(directory),
		Provisioner:        schoolsprov.NewSchemaProvisioner(pool),
		Invalidator:        tenantCache,
		ReservedSubdomains: cfg.Reserved,
		Logger:             logger,
	})
	userService := usersservice.New(usersrepo.NewPostgresRepository(persistence.NewUserStore(exec)))

	authMiddleware, err := buildAuthMiddleware(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init auth", zap.Error(err))
	}

	router := buildRouter(routerDeps{
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		CORS: platformmiddleware.CORSConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			DevHeader:      cfg.DevHeader,
		},
		Auth:     authMiddleware,
		Resolver: resolver,
		Verifier: verifier,
		Schools:  schoolshandler.New(schoolService, logger),
		Users:    usershandler.New(userService, logger),
		Ready:    readiness(pool),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.HTTPMiddleware(serviceName)(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port), zap.String("app_env", cfg.AppEnv))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", zap.Error(err))
	}
}

// buildBus connects to Redis when REDIS_URL is set so invalidations reach every
// instance. Without it each instance relies on the cache TTL for changes made
// elsewhere.
func buildBus(ctx context.Context, cfg config, logger *zap.Logger) (cache.Bus, func()) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set; tenant invalidations stay local to this instance")
		return cache.NopBus{}, func() {}
	}

	client, err := cache.DialRedis(ctx, cfg.RedisURL, 5, 2*time.Second)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	return cache.NewRedisBus(client, "", logger), func() { _ = client.Close() }
}

func readiness(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}
}
