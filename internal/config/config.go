// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/breatheroute/gios/internal/gios"
)

// ErrInvalidStations is returned when GIOS_STATIONS cannot be parsed.
var ErrInvalidStations = errors.New("invalid GIOS_STATIONS")

// Station is one configured measuring station, the equivalent of a config entry.
type Station struct {
	ID   int
	Name string
}

// Config holds the service configuration.
type Config struct {
	Port        string
	Environment string
	RequireTLS  bool

	OTelEnabled  bool
	OTLPEndpoint string

	Stations     []Station
	ScanInterval time.Duration

	// Pub/Sub is disabled when ProjectID is empty.
	PubSubProjectID            string
	PubSubSnapshotSubscription string
	PubSubStateTopic           string

	// APITokenSecret signs the bearer tokens accepted by the status endpoint.
	APITokenSecret string
}

// FromEnv creates a Config from environment variables.
func FromEnv() (Config, error) {
	scanInterval, err := time.ParseDuration(getEnvOrDefault("GIOS_SCAN_INTERVAL", gios.DefaultScanInterval.String()))
	if err != nil {
		return Config{}, fmt.Errorf("parse GIOS_SCAN_INTERVAL: %w", err)
	}

	stations, err := ParseStations(os.Getenv("GIOS_STATIONS"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		Port:                       getEnvOrDefault("APP_PORT", "8080"),
		Environment:                getEnvOrDefault("APP_ENV", "development"),
		RequireTLS:                 os.Getenv("REQUIRE_TLS") == "true",
		OTelEnabled:                os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:               getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Stations:                   stations,
		ScanInterval:               scanInterval,
		PubSubProjectID:            os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSnapshotSubscription: getEnvOrDefault("PUBSUB_SNAPSHOT_SUBSCRIPTION", "gios-snapshots"),
		PubSubStateTopic:           os.Getenv("PUBSUB_STATE_TOPIC"),
		APITokenSecret:             os.Getenv("API_TOKEN_SECRET"),
	}, nil
}

// ParseStations parses a comma separated list of "id:name" pairs.
// The name is optional and defaults to the integration display name.
func ParseStations(raw string) ([]Station, error) {
	var stations []Station
	seen := make(map[int]bool)

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		idPart, name, _ := strings.Cut(part, ":")
		id, err := strconv.Atoi(strings.TrimSpace(idPart))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: bad station id %q", ErrInvalidStations, idPart)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: station %d listed twice", ErrInvalidStations, id)
		}
		seen[id] = true

		name = strings.TrimSpace(name)
		if name == "" {
			name = gios.DefaultName
		}
		stations = append(stations, Station{ID: id, Name: name})
	}

	return stations, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
