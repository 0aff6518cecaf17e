package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/62saybyetopain/new-reservation-system/libs/config"
	"github.com/62saybyetopain/new-reservation-system/libs/db"
	"github.com/62saybyetopain/new-reservation-system/libs/grpcx"
	"github.com/62saybyetopain/new-reservation-system/libs/httpx"
	"github.com/62saybyetopain/new-reservation-system/libs/kafkax"
	otelx "github.com/62saybyetopain/new-reservation-system/libs/otel"
	"github.com/62saybyetopain/new-reservation-system/libs/runtime"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/admin"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/booking"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/consumer"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/handlers"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/inbox"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/jobs"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/outbox"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/snapshot"
	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9083")
	if err != nil {
		panic(err)
	}
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(healthcheck(service, grpcPort))
	}
	loc, err := config.Location("TIMEZONE", "Asia/Taipei")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10, 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("MIGRATE_ON_START", true) {
		if err := storage.Migrate(ctx, pool, logger); err != nil {
			logger.Error("migration failed", "err", err)
			panic(err)
		}
	}

	brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	outboxRepo := outbox.NewRepository()
	store := storage.NewStore(pool, outboxRepo)

	cacheTTL := time.Duration(config.Int("CONFIG_CACHE_TTL_SECONDS", 300, 1)) * time.Second
	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers), Optional: true},
	}
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120, 1)

	var (
		cache       snapshot.Cache
		rateLimitMW httpx.Middleware
	)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0, 0),
		})
		defer func() { _ = rdb.Close() }()

		cache = snapshot.NewRedisCache(rdb, config.String("CONFIG_CACHE_KEY", service+":availability-config"), cacheTTL)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: snapshot.ReadyCheck(rdb), Optional: true})
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", service+":rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("redis enabled", "addr", addr, "rate_limit_per_minute", limitPerMinute)
	} else {
		cache = snapshot.NewMemoryCache(cacheTTL)
		rateLimitMW = httpx.NewRateLimiter(limitPerMinute, time.Minute).Middleware()
		logger.Info("redis not configured; using in-process cache and rate limiter")
	}

	loader := snapshot.NewLoader(store, cache, logger)
	bookings := booking.NewService(booking.NewPostgresStore(store), loc, logger)
	configSvc := admin.NewService(admin.NewPostgresStore(store), loader, logger)

	if config.Bool("SEED_DEFAULTS", true) {
		seeded, err := configSvc.Seed(ctx)
		if err != nil {
			logger.Error("seeding defaults failed", "err", err)
		} else if seeded {
			logger.Info("default plans and weekly schedule installed")
		}
	}

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	configConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", service),
		Topic:   outbox.TypeAvailabilityChanged,
	}, consumer.InvalidateConfig(loader))
	go configConsumer.Run(ctx)

	housekeeper := jobs.NewHousekeeper(configSvc, publisher, logger, jobs.Config{
		Spec:              config.String("PRUNE_CRON", "15 3 * * *"),
		OverrideRetention: config.Int("OVERRIDE_RETENTION_DAYS", 7, 0),
		OutboxRetention:   time.Duration(config.Int("OUTBOX_RETENTION_HOURS", 168, 1)) * time.Hour,
		Location:          loc,
	})
	go func() {
		if err := housekeeper.Start(ctx); err != nil {
			logger.Error("housekeeping not started", "err", err)
		}
	}()

	grpcSrv, health := grpcx.NewServer(logger)
	health.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go grpcx.Serve(ctx, grpcSrv, lis, logger)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handlers.NewPublicHandler(loader, bookings, loc, logger).Register(mux)
	handlers.NewAdminHandler(bookings, configSvc, loc, logger).Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: config.List("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: config.List("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id,Idempotency-Key"),
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(config.Int("HTTP_BODY_LIMIT_BYTES", 1<<20, 1024))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10, 1))*time.Second),
		rateLimitMW,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	runtime.ServeHTTP(ctx, srv, logger, 10*time.Second)
	health.Shutdown()
}

// healthcheck queries the local gRPC health service; it backs container liveness checks.
func healthcheck(service, grpcPort string) int {
	if err := grpcx.CheckHealth(context.Background(), "127.0.0.1:"+grpcPort, service, 3*time.Second); err != nil {
		fmt.Fprintln(os.Stderr, "unhealthy:", err)
		return 1
	}
	return 0
}
