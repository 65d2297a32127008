package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"runtime"
	"time"

	"nightmap/internal/auth"
	"nightmap/internal/catalog"
	"nightmap/internal/db"
	"nightmap/internal/dedupe"
	"nightmap/internal/domain/storage"
	"nightmap/internal/events"
	"nightmap/internal/logging"
	"nightmap/internal/metrics"
	"nightmap/internal/moderation"
	"nightmap/internal/notifications"
	"nightmap/internal/ratelimiter"
	"nightmap/internal/sources"
	"nightmap/internal/syncer"
	"nightmap/internal/upsert"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

var version = "0.3.0"

//	@title			Nightmap API
//	@description	Nightlife venue catalog for Dayton: provider sync, user submissions and moderation.

//	@contact.name	API Support

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@securityDefinitions.basic	BasicAuth

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.logLevel)
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	// Database
	pool, err := db.New(cfg.db.addr, cfg.db.maxConns, cfg.db.maxIdleTime)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	store := storage.NewContainer(pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs the catalog cache and the rate limiter; both degrade when it
	// is down.
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.redis.addr,
		DB:   cfg.redis.db,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warnw("redis unreachable, serving the catalog from postgres", "addr", cfg.redis.addr, "error", err)
	}

	collector := metrics.New()
	cat := catalog.New(store.POIs, rdb, cfg.redis.ttl, logger)

	push := notifications.NewExpoAdapter(cfg.push.accessToken)
	notifier := events.NewAsync(notifications.NewDecisionNotifier(push, store.PushTokens, logger))
	defer notifier.Wait()

	emitter := events.Multi(
		events.NewLogEmitter(logger),
		collector,
		cat,
		notifier,
	)

	region := cfg.sync.region
	adapters := sources.NewAll(sources.Config{
		BaseURL:           cfg.providers.baseURL,
		APIKey:            cfg.providers.apiKey,
		Timeout:           cfg.providers.timeout,
		RequestsPerSecond: cfg.providers.rps,
		MaxRetries:        cfg.providers.maxRetries,
		Region:            &region,
		Observe:           collector.ObserveProvider,
	}, logger)

	coordinator := upsert.New(store.POIs, upsert.DefaultConcurrency, emitter, logger)
	orchestrator := syncer.New(adapters, dedupe.New(), coordinator, emitter, logger)

	var limiter ratelimiter.Limiter
	if cfg.rateLimiter.Enabled {
		local := ratelimiter.NewFixedWindowLimiter(cfg.rateLimiter.RequestsPerTimeFrame, cfg.rateLimiter.TimeFrame)
		go local.Run(ctx)
		limiter = ratelimiter.NewRedisFixedWindow(rdb, cfg.rateLimiter.RequestsPerTimeFrame, cfg.rateLimiter.TimeFrame, logger).
			WithFallback(local)
	}

	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.aud,
		cfg.auth.token.iss,
	)

	app := &application{
		config:        cfg,
		store:         store,
		logger:        logger,
		authenticator: jwtAuthenticator,
		rateLimiter:   limiter,
		moderation:    moderation.NewService(store.POIs, store.AccessControl, emitter, &region, logger),
		syncer:        orchestrator,
		catalog:       cat,
		metrics:       collector,
	}

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		s := pool.Stat()
		return map[string]int32{
			"total":    s.TotalConns(),
			"idle":     s.IdleConns(),
			"acquired": s.AcquiredConns(),
		}
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("last_sync", expvar.Func(func() any {
		s, ok := orchestrator.Last()
		if !ok {
			return nil
		}
		return map[string]any{
			"started_at": s.StartedAt,
			"unique":     s.TotalUnique,
			"inserted":   s.Inserted,
			"updated":    s.Updated,
			"failed":     s.Failed,
		}
	}))

	if cfg.sync.enabled {
		app.syncEvery(ctx, cfg.sync.interval)
	}
	app.pruneStaleTokensDaily(ctx, 70*24*time.Hour)

	mux := app.mount()

	if err := app.run(mux); err != nil {
		logger.Fatal(err)
	}
}
