package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config aggregates runtime configuration for the Stridelog services.
type Config struct {
	Environment    string
	HTTPPort       int
	LogLevel       string
	AllowedOrigins []string

	// Row store selection: "memory" for local development, "postgres" for a
	// self-hosted deployment sharing the identity backend's database.
	DataStore   string
	DatabaseURL string

	// Public base URL of this app, used to derive the OAuth redirect URI and
	// the synthetic-email domain.
	AppBaseURL  string
	EmailDomain string

	// Identity gateway (external auth service of record).
	IdentityURL        string
	IdentityServiceKey string

	// Strava OAuth application credentials.
	StravaClientID     string
	StravaClientSecret string
}

// Load reads configuration from environment variables with sensible defaults for local development.
func Load() (Config, error) {
	databaseURL, err := getEnvOrFile("DATABASE_URL", "/run/secrets/stridelog_database_url")
	if err != nil {
		return Config{}, err
	}

	serviceKey, err := getEnvOrFile("IDENTITY_SERVICE_KEY", "/run/secrets/stridelog_identity_service_key")
	if err != nil {
		return Config{}, err
	}

	stravaSecret, err := getEnvOrFile("STRAVA_CLIENT_SECRET", "/run/secrets/stridelog_strava_client_secret")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:        getEnv("APP_ENV", "development"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigins:     parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		DataStore:          strings.ToLower(getEnv("DATA_STORE", "memory")),
		DatabaseURL:        databaseURL,
		AppBaseURL:         strings.TrimSuffix(getEnv("APP_BASE_URL", "http://localhost:8080"), "/"),
		EmailDomain:        getEnv("EMAIL_DOMAIN", ""),
		IdentityURL:        strings.TrimSuffix(getEnv("IDENTITY_URL", ""), "/"),
		IdentityServiceKey: strings.TrimSpace(serviceKey),
		StravaClientID:     getEnv("STRAVA_CLIENT_ID", ""),
		StravaClientSecret: strings.TrimSpace(stravaSecret),
	}

	portValue := getEnv("PORT", getEnv("HTTP_PORT", "8080"))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return Config{}, fmt.Errorf("invalid port %q: %w", portValue, err)
	}
	cfg.HTTPPort = port

	if cfg.EmailDomain == "" {
		parsed, err := url.Parse(cfg.AppBaseURL)
		if err != nil || parsed.Hostname() == "" {
			return Config{}, fmt.Errorf("cannot derive email domain from APP_BASE_URL %q", cfg.AppBaseURL)
		}
		cfg.EmailDomain = parsed.Hostname()
	}

	if cfg.DataStore == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATA_STORE is postgres but DATABASE_URL is not set")
	}

	return cfg, nil
}

// HTTPAddress returns the address the HTTP server should bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseInMemoryStore returns true if the in-memory repository should be used.
func (c Config) UseInMemoryStore() bool {
	return c.DataStore == "memory"
}

// ValidateStrava checks that the Strava OAuth credentials are present.
func (c Config) ValidateStrava() error {
	if c.StravaClientID == "" || c.StravaClientSecret == "" {
		return fmt.Errorf("STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET must be set")
	}
	return nil
}

// ValidateIdentity checks that the identity gateway settings are present.
func (c Config) ValidateIdentity() error {
	if c.IdentityURL == "" || c.IdentityServiceKey == "" {
		return fmt.Errorf("IDENTITY_URL and IDENTITY_SERVICE_KEY must be set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrFile(key, defaultPath string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}

	fileKey := key + "_FILE"
	if path := os.Getenv(fileKey); path != "" {
		return readSecret(path, fileKey)
	}

	if defaultPath != "" {
		return readSecret(defaultPath, key)
	}

	return "", nil
}

func readSecret(path, name string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: reading %s (%s): %w", name, path, err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", fmt.Errorf("config: %s (%s) is empty", name, path)
	}
	return value, nil
}
