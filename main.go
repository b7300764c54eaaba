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

	"github.com/gumifu/van-bus-cast/handlers"
	"github.com/gumifu/van-bus-cast/internal/config"
	"github.com/gumifu/van-bus-cast/internal/delays"
	"github.com/gumifu/van-bus-cast/internal/geo"
	"github.com/gumifu/van-bus-cast/internal/nearby"
	"github.com/gumifu/van-bus-cast/internal/pins"
	"github.com/gumifu/van-bus-cast/internal/predict"
	"github.com/gumifu/van-bus-cast/internal/regions"
	"github.com/gumifu/van-bus-cast/internal/routeindex"
	"github.com/gumifu/van-bus-cast/internal/session"
	"github.com/gumifu/van-bus-cast/internal/shapes"
	"github.com/gumifu/van-bus-cast/internal/stops"
	"github.com/gumifu/van-bus-cast/internal/translink"
	"github.com/gumifu/van-bus-cast/models"
	"github.com/gumifu/van-bus-cast/repository"
)

// shapeStoreMaxAge is how long a persisted shape is served before it is refetched
const shapeStoreMaxAge = 24 * time.Hour

func main() {
	// Load .env first, then .env.local (which overrides for local development)
	config.LoadEnvFiles(".")
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SQLite holds the shape cache and, without DATABASE_URL, the pinned stops
	log.Printf("Connecting to SQLite database: %s", cfg.DatabasePath)
	sqliteDB, err := repository.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite database: %v", err)
	}
	defer sqliteDB.Close()

	var pinRepo pins.Repository = repository.NewSQLitePinRepository(sqliteDB)
	dbPing := sqliteDB.Ping
	if cfg.DatabaseURL != "" {
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pgRepo, err := repository.NewPostgresPinRepository(pgCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		defer pgRepo.Close()
		pinRepo = pgRepo
		dbPing = pgRepo.Ping
	}
	pinRegistry := pins.NewRegistry(pinRepo)

	// Static geospatial data. A missing file leaves the feature empty, it does not stop the server.
	catalog := stops.NewCatalog()
	if err := catalog.Load(cfg.StopsGeoJSON); err != nil {
		log.Printf("Warning: failed to load stops from %s: %v", cfg.StopsGeoJSON, err)
	}

	index := routeindex.New()
	if err := index.Load(cfg.RouteIndexPath); err != nil {
		log.Printf("Warning: failed to load route index from %s: %v", cfg.RouteIndexPath, err)
	}

	regionSet := regions.Default()
	if cfg.RegionsFile != "" {
		if regionSet, err = regions.Load(cfg.RegionsFile); err != nil {
			log.Fatalf("Failed to load regions: %v", err)
		}
	}

	// Shape pipeline: source -> SQLite store -> in-memory cache -> bounded loader
	var source shapes.Fetcher = shapes.NewFileFetcher(cfg.ShapesDir)
	if cfg.ShapesURL != "" {
		source = shapes.NewHTTPFetcher(cfg.ShapesURL)
	}
	persistent := shapes.NewPersistentFetcher(source, repository.NewSQLiteShapeStore(sqliteDB), shapeStoreMaxAge)
	shapeCache := shapes.NewCachingFetcher(persistent, cfg.ShapeCacheTTL)
	loader := shapes.NewLoader(shapeCache, cfg.ShapeFetchLimit)
	resolver := nearby.NewResolver(index, loader)
	go purgeShapeCache(ctx, shapeCache, cfg.ShapeCacheTTL)

	// Map sessions
	opts := session.DefaultOptions()
	opts.RetryDelay = cfg.SessionRetryDelay
	manager := session.NewManager(resolver, opts)
	defer manager.Shutdown()
	go manager.RunSweeper(ctx, sweepInterval(cfg.SessionIdleTTL), cfg.SessionIdleTTL, func() {
		if n := pinRegistry.Evict(cfg.SessionIdleTTL, manager.HasOwner); n > 0 {
			log.Printf("Released %d idle pin stores", n)
		}
	})

	// Delay estimates
	var estimator delays.Estimator = delays.NewRandomEstimator(cfg.DelaySeed, time.Minute)
	delayFreshness := func() time.Time { return time.Time{} }
	if cfg.GTFSTripUpdatesURL != "" {
		feed := delays.NewFeedEstimator(cfg.GTFSTripUpdatesURL, estimator)
		go feed.Run(ctx, cfg.DelayPollInterval)
		estimator = feed
		delayFreshness = feed.LastChecked
	}

	// Upstream clients
	transitClient := translink.NewClient(cfg.TranslinkAPIURL, cfg.TranslinkAPIKey)
	predictClient := predict.NewClient(cfg.APIURL)

	probes := []handlers.Probe{
		handlers.CountProbe(models.ComponentStops, catalog.Len),
		handlers.CountProbe(models.ComponentRouteIndex, index.Len),
		func(ctx context.Context, now time.Time) models.ComponentHealth {
			// Zero open maps is a normal state
			return models.ComponentHealth{
				Component:   models.ComponentSessions,
				Status:      models.StatusHealthy,
				HealthScore: 100,
				Count:       manager.Len(),
				AgeSeconds:  -1,
			}
		},
		handlers.PingProbe(models.ComponentDatabase, dbPing),
		handlers.PingProbe(models.ComponentTransLink, func(ctx context.Context) error {
			if !transitClient.HasKey() {
				return translink.ErrNoAPIKey
			}
			return nil
		}),
	}
	if cfg.GTFSTripUpdatesURL != "" {
		probes = append(probes, handlers.FreshnessProbe(models.ComponentDelayFeed, delayFreshness))
	}

	r := newRouter(cfg, routerDeps{
		busStops: handlers.NewBusStopHandler(transitClient),
		proxy:    handlers.NewProxyHandler(predictClient),
		stops:    handlers.NewStopHandler(catalog),
		routes:   handlers.NewRouteHandler(resolver, loader),
		pins:     handlers.NewPinHandler(pinRegistry, catalog, manager),
		sessions: handlers.NewSessionHandler(manager, pinRegistry, catalog),
		delays:   handlers.NewDelayHandler(estimator, regionSet),
		regions:  handlers.NewRegionHandler(regionSet),
		health:   handlers.NewHealthHandler(dbPing, probes...),
		config: handlers.ConfigResponse{
			MapboxToken:     cfg.MapboxToken,
			DefaultLocation: geo.DefaultLocation.LngLat(),
			StopsDataURL:    opts.StopsDataURL,
			APIURL:          cfg.APIURL,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("API server starting on :%s", cfg.Port)
	logEndpoints()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("API server stopped")
}

// purgeShapeCache drops expired shapes every ttl until ctx is done
func purgeShapeCache(ctx context.Context, cache *shapes.CachingFetcher, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := cache.Purge(); n > 0 {
				log.Printf("Purged %d expired shapes", n)
			}
		}
	}
}

// sweepInterval checks for idle sessions a few times per idle period
func sweepInterval(idle time.Duration) time.Duration {
	if interval := idle / 4; interval > time.Minute {
		return interval
	}
	return time.Minute
}

func logEndpoints() {
	log.Println("Transit endpoints:")
	log.Println("  GET /api/bus-stops")
	log.Println("  GET /api/regional-status")
	log.Println("  GET /api/stops/{stopId}/predictions")
	log.Println("Stop and route endpoints:")
	log.Println("  GET /api/stops?q=")
	log.Println("  GET /api/stops/nearby")
	log.Println("  GET /api/stops/{stopId}")
	log.Println("  GET /api/routes/nearby")
	log.Println("  GET /api/routes/shapes/{shapeId}")
	log.Println("Pinned stops:")
	log.Println("  GET /api/pins")
	log.Println("  PUT|DELETE /api/pins/{stopId}")
	log.Println("Delays:")
	log.Println("  GET /api/delays/regions|stops|routes")
	log.Println("  GET /api/delays/routes/{routeId}/forecast")
	log.Println("Map sessions:")
	log.Println("  POST /api/sessions")
	log.Println("  GET|DELETE /api/sessions/{sessionId}")
	log.Println("  POST /api/sessions/{sessionId}/ready|select|close|location")
	log.Println("Health:")
	log.Println("  GET /health (with database check)")
	log.Println("  GET /api/health/components")
}
