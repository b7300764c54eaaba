package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gumifu/van-bus-cast/handlers"
	"github.com/gumifu/van-bus-cast/internal/config"
)

type routerDeps struct {
	busStops *handlers.BusStopHandler
	proxy    *handlers.ProxyHandler
	stops    *handlers.StopHandler
	routes   *handlers.RouteHandler
	pins     *handlers.PinHandler
	sessions *handlers.SessionHandler
	delays   *handlers.DelayHandler
	regions  *handlers.RegionHandler
	health   *handlers.HealthHandler
	config   handlers.ConfigResponse
}

func newRouter(cfg *config.Config, d routerDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", d.health.GetHealth)
	r.Get("/api/health/components", d.health.GetComponentHealth)

	// Legacy health check endpoint (kept for backwards compatibility)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Legacy ping endpoint
	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})

	r.Get("/api/config", handlers.ConfigHandler(d.config))

	// Upstream proxies
	r.Get("/api/bus-stops", d.busStops.GetBusStops)
	r.Get("/api/regional-status", d.proxy.GetRegionalStatus)

	// Static stops and route lines
	r.Get("/api/stops", d.stops.SearchStops)
	r.Get("/api/stops/nearby", d.stops.GetNearbyStops)
	r.Get("/api/stops/{stopId}", d.stops.GetStop)
	r.Get("/api/stops/{stopId}/predictions", d.proxy.GetStopPredictions)
	r.Get("/api/routes/nearby", d.routes.GetNearbyRoutes)
	r.Get("/api/routes/shapes/{shapeId}", d.routes.GetShape)

	// Pinned stops, keyed by the X-Client-ID header
	r.Get("/api/pins", d.pins.ListPins)
	r.Put("/api/pins/{stopId}", d.pins.PutPin)
	r.Delete("/api/pins/{stopId}", d.pins.DeletePin)

	// Delay estimates
	r.Get("/api/delays/regions", d.delays.GetRegionDelays)
	r.Get("/api/delays/stops", d.delays.GetStopDelays)
	r.Get("/api/delays/routes", d.delays.GetRouteDelays)
	r.Get("/api/delays/routes/{routeId}/forecast", d.delays.GetRouteForecast)

	r.Get("/api/regions", d.regions.GetRegions)

	// Map sessions
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", d.sessions.CreateSession)
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", d.sessions.GetSession)
			r.Delete("/", d.sessions.DeleteSession)
			r.Post("/ready", d.sessions.MarkReady)
			r.Post("/select", d.sessions.SelectStop)
			r.Post("/close", d.sessions.CloseSelection)
			r.Post("/location", d.sessions.SetLocation)
		})
	})

	// Static file serving (if configured)
	if cfg.StaticDir != "" {
		fs := http.FileServer(http.Dir(cfg.StaticDir))
		r.Handle("/*", fs)
	}

	return r
}
