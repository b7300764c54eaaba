package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultAPIURL = "https://vanbuscast-api-prod.up.railway.app"

// Config holds all configuration for the API server
type Config struct {
	// HTTP
	Port           string
	AllowedOrigins []string
	StaticDir      string

	// Map client
	MapboxToken string

	// Upstream services
	APIURL          string
	TranslinkAPIKey string
	TranslinkAPIURL string

	// Static geospatial data
	DataDir           string
	StopsGeoJSON      string
	RouteIndexPath    string
	ShapesDir         string
	ShapesURL         string
	ShapeFetchLimit   int
	ShapeCacheTTL     time.Duration
	RegionsFile       string
	SessionRetryDelay time.Duration
	SessionIdleTTL    time.Duration

	// Persistence
	DatabasePath string
	DatabaseURL  string

	// Delay estimates
	GTFSTripUpdatesURL string
	DelayPollInterval  time.Duration
	DelaySeed          int64
}

// LoadEnvFiles loads .env first, then .env.local which overrides it for local development.
// Missing files are not an error.
func LoadEnvFiles(dir string) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	_ = godotenv.Overload(filepath.Join(dir, ".env.local"))
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8081"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		StaticDir:      getEnv("STATIC_DIR", ""),

		MapboxToken: getEnv("MAPBOX_TOKEN", ""),

		APIURL:          strings.TrimRight(getEnv("API_URL", defaultAPIURL), "/"),
		TranslinkAPIKey: getEnv("TRANSLINK_API_KEY", ""),
		TranslinkAPIURL: strings.TrimRight(getEnv("TRANSLINK_API_URL", "https://api.translink.ca/rttiapi/v1"), "/"),

		DataDir:           getEnv("DATA_DIR", "./public/data"),
		ShapesURL:         strings.TrimRight(getEnv("SHAPES_URL", ""), "/"),
		ShapeFetchLimit:   getEnvInt("SHAPE_FETCH_LIMIT", 8),
		ShapeCacheTTL:     time.Duration(getEnvInt("SHAPE_CACHE_SECONDS", 300)) * time.Second,
		RegionsFile:       getEnv("REGIONS_FILE", ""),
		SessionRetryDelay: time.Duration(getEnvInt("SESSION_RETRY_MS", 100)) * time.Millisecond,
		SessionIdleTTL:    time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,

		DatabasePath: getEnv("SQLITE_DATABASE", "./data/vanbuscast.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		GTFSTripUpdatesURL: getEnv("GTFS_TRIP_UPDATES_URL", ""),
		DelayPollInterval:  time.Duration(getEnvPositiveInt("DELAY_POLL_INTERVAL", 60)) * time.Second,
		DelaySeed:          int64(getEnvInt("DELAY_SEED", 0)),
	}

	// Derived paths
	cfg.StopsGeoJSON = getEnv("STOPS_GEOJSON", filepath.Join(cfg.DataDir, "stops.geojson"))
	cfg.RouteIndexPath = getEnv("ROUTE_INDEX", filepath.Join(cfg.DataDir, "route_index.json"))
	cfg.ShapesDir = getEnv("SHAPES_DIR", filepath.Join(cfg.DataDir, "shapes"))

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvPositiveInt is getEnvInt that also rejects zero and negative values
func getEnvPositiveInt(key string, defaultValue int) int {
	if v := getEnvInt(key, defaultValue); v > 0 {
		return v
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
