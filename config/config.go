package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration for the settlement service.
type Config struct {
	Port                string
	DatabaseURL         string
	Env                 string
	LogFile             string
	SnapshotBaseURL     string
	PointsBaseURL       string
	EthRPCURL           string
	ParamsPath          string
	RequestTimeout      time.Duration
	DistributorOffset   time.Duration
	ReferralOffset      time.Duration
	ReferralParallelism int
}

// FromEnv loads configuration from environment variables required by the
// service.
func FromEnv() (*Config, error) {
	dbURL := os.Getenv("SOLSTICE_DB_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("SOLSTICE_DB_URL is required")
	}
	snapshotBase := strings.TrimSpace(os.Getenv("SOLSTICE_SNAPSHOT_BASE"))
	if snapshotBase == "" {
		return nil, fmt.Errorf("SOLSTICE_SNAPSHOT_BASE is required")
	}
	pointsBase := strings.TrimSpace(os.Getenv("SOLSTICE_POINTS_BASE"))
	if pointsBase == "" {
		return nil, fmt.Errorf("SOLSTICE_POINTS_BASE is required")
	}

	requestTimeout, err := getEnvDuration("SOLSTICE_REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	distributorOffset, err := getEnvDuration("SOLSTICE_DISTRIBUTOR_OFFSET", time.Hour)
	if err != nil {
		return nil, err
	}
	referralOffset, err := getEnvDuration("SOLSTICE_REFERRAL_OFFSET", 2*time.Hour)
	if err != nil {
		return nil, err
	}
	parallelism, err := getEnvInt("SOLSTICE_REFERRAL_PARALLELISM", 8)
	if err != nil {
		return nil, err
	}
	if parallelism <= 0 {
		return nil, fmt.Errorf("SOLSTICE_REFERRAL_PARALLELISM must be positive")
	}

	return &Config{
		Port:                getEnvDefault("SOLSTICE_PORT", "8081"),
		DatabaseURL:         dbURL,
		Env:                 getEnvDefault("SOLSTICE_ENV", "dev"),
		LogFile:             os.Getenv("SOLSTICE_LOG_FILE"),
		SnapshotBaseURL:     snapshotBase,
		PointsBaseURL:       pointsBase,
		EthRPCURL:           strings.TrimSpace(os.Getenv("SOLSTICE_ETH_RPC")),
		ParamsPath:          os.Getenv("SOLSTICE_PARAMS_PATH"),
		RequestTimeout:      requestTimeout,
		DistributorOffset:   distributorOffset,
		ReferralOffset:      referralOffset,
		ReferralParallelism: parallelism,
	}, nil
}

func getEnvDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return parsed, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, raw, err)
	}
	return parsed, nil
}
