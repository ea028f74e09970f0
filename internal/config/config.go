package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/haulwatch/service-tracking/internal/platform/database"
)

// ServiceConfig holds all configuration for the tracking service.
type ServiceConfig struct {
	Port     string
	AppEnv   string
	DB       database.PostgresConfig
	Kafka    KafkaConfig
	Maps     MapsConfig
	Tracking TrackingConfig
}

// KafkaConfig holds the broker addresses for event publishing.
type KafkaConfig struct {
	Brokers []string
}

// MapsConfig holds geocoding and routing provider settings. An empty
// Google API key leaves the commercial provider disabled and the
// service running on the free chain.
type MapsConfig struct {
	GoogleAPIKey       string
	NominatimBaseURL   string
	NominatimUserAgent string
	OSRMBaseURL        string
}

// TrackingConfig tunes the tracking pipeline.
type TrackingConfig struct {
	FetchConcurrency      int64
	FetchTimeout          time.Duration
	RenderWait            time.Duration
	TelemetryTTL          time.Duration
	GeocodeTTL            time.Duration
	DistanceTTL           time.Duration
	UpdateInterval        time.Duration
	ExtendedStopThreshold time.Duration
}

// Load reads configuration from TRACKING_* environment variables, an
// optional config.yaml in the working directory, and a local .env file
// when one is present.
func Load() (*ServiceConfig, error) {
	// Local development convenience, .env never exists in production.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TRACKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &ServiceConfig{
		Port:   ":" + v.GetString("port"),
		AppEnv: v.GetString("app_env"),
		DB: database.PostgresConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
		},
		Maps: MapsConfig{
			GoogleAPIKey:       v.GetString("maps.google_api_key"),
			NominatimBaseURL:   v.GetString("maps.nominatim_base_url"),
			NominatimUserAgent: v.GetString("maps.nominatim_user_agent"),
			OSRMBaseURL:        v.GetString("maps.osrm_base_url"),
		},
		Tracking: TrackingConfig{
			FetchConcurrency:      v.GetInt64("fetch_concurrency"),
			FetchTimeout:          v.GetDuration("fetch_timeout"),
			RenderWait:            v.GetDuration("render_wait"),
			TelemetryTTL:          v.GetDuration("telemetry_ttl"),
			GeocodeTTL:            v.GetDuration("geocode_ttl"),
			DistanceTTL:           v.GetDuration("distance_ttl"),
			UpdateInterval:        v.GetDuration("update_interval"),
			ExtendedStopThreshold: v.GetDuration("extended_stop_threshold"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("app_env", "development")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "tracking")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("kafka.brokers", "localhost:9092")

	v.SetDefault("maps.google_api_key", "")
	v.SetDefault("maps.nominatim_base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("maps.nominatim_user_agent", "service-tracking/1.0")
	v.SetDefault("maps.osrm_base_url", "http://router.project-osrm.org")

	v.SetDefault("fetch_concurrency", 8)
	v.SetDefault("fetch_timeout", "10s")
	v.SetDefault("render_wait", "5s")
	v.SetDefault("telemetry_ttl", "15s")
	v.SetDefault("geocode_ttl", "1h")
	v.SetDefault("distance_ttl", "60s")
	v.SetDefault("update_interval", "2h")
	v.SetDefault("extended_stop_threshold", "45m")
}

// splitList parses a comma-separated list, trimming blanks.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
