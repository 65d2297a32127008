// Command sync runs one provider sync cycle against the catalog database and
// prints the summary as JSON. It shares the API's environment variables.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nightmap/internal/catalog"
	"nightmap/internal/db"
	"nightmap/internal/dedupe"
	"nightmap/internal/domain/pois"
	"nightmap/internal/domain/venues"
	"nightmap/internal/events"
	"nightmap/internal/logging"
	"nightmap/internal/sources"
	"nightmap/internal/syncer"
	"nightmap/internal/upsert"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		location    string
		keyword     string
		logLevel    string
		timeout     time.Duration
		concurrency int
		anyRegion   bool
	)

	flag.StringVar(&location, "location", sources.DefaultLocation, "Location query sent to every provider")
	flag.StringVar(&keyword, "keyword", sources.DefaultKeyword, "Search keyword")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Upper bound for the whole cycle")
	flag.IntVar(&concurrency, "concurrency", upsert.DefaultConcurrency, "Parallel upserts")
	flag.BoolVar(&anyRegion, "any-region", false, "Keep venues outside the Dayton bounding box")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	logger, err := logging.New(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	dbAddr := os.Getenv("DB_ADDR")
	baseURL := os.Getenv("PROVIDER_PROXY_URL")
	if dbAddr == "" || baseURL == "" {
		logger.Fatal("DB_ADDR and PROVIDER_PROXY_URL are required")
	}

	pool, err := db.New(dbAddr, 4, "1m")
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	store := pois.NewRepository(pool)

	emitters := []events.Emitter{events.NewLogEmitter(logger)}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
		// The API serves from this cache; drop it once the cycle lands.
		emitters = append(emitters, catalog.New(store, rdb, catalog.DefaultTTL, logger))
	}
	emitter := events.Multi(emitters...)

	var region *venues.Region
	if !anyRegion {
		r := venues.DaytonRegion
		region = &r
	}

	adapters := sources.NewAll(sources.Config{
		BaseURL:    baseURL,
		APIKey:     os.Getenv("PROVIDER_API_KEY"),
		MaxRetries: sources.DefaultMaxRetries,
		Region:     region,
	}, logger)

	orchestrator := syncer.New(
		adapters,
		dedupe.New(),
		upsert.New(store, concurrency, emitter, logger),
		emitter,
		logger,
	)

	summary, err := orchestrator.RunSync(ctx, sources.Query{Location: location, Keyword: keyword})
	if err != nil {
		logger.Fatalw("sync failed", "error", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Fatalw("failed to write summary", "error", err)
	}

	if summary.Failed > 0 {
		os.Exit(2)
	}
}
