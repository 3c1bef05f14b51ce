// Package config loads server configuration from command-line flags, environment
// variables and an optional .env file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DevSignatureSecret is the signing secret used when none is configured outside
// production. Game clients built for local play embed the same value.
const DevSignatureSecret = "podropsquare-dev-secret"

// Store backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App         AppConfig
	Logger      LoggerConfig
	Data        DataConfig
	Store       StoreConfig
	Server      ServerConfig
	Game        GameConfig
	RateLimit   RateLimitConfig
	Leaderboard LeaderboardConfig
	Retention   RetentionConfig
	Auth        AuthConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json, pretty, or empty to derive from the environment
}

// DataConfig locates on-disk state.
type DataConfig struct {
	BasePath string
}

// StoreConfig selects and bounds the score store.
type StoreConfig struct {
	Backend      string        // badger or sqlite
	Timeout      time.Duration // per-call deadline for store operations
	PurgeTimeout time.Duration // deadline for one retention sweep
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxConnections int      // 0 disables the listener cap
	AllowedOrigins []string // CORS origins
	IPRate         float64  // per-IP submissions per second
	IPBurst        int
	AdvertiseMDNS  bool     // announce the server on the local network
}

// GameConfig holds the anti-cheat parameters for a game session.
type GameConfig struct {
	MinSurvivalSeconds float64
	MaxSurvivalSeconds float64
	MaxClockSkew       time.Duration
	SignatureSecret    string

	// SignatureSecretFile, when set, holds the secret and is watched for
	// rotation. It takes precedence over SignatureSecret.
	SignatureSecretFile string
}

// RateLimitConfig configures the per-player fixed window.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// LeaderboardConfig configures the materialized top-N view.
type LeaderboardConfig struct {
	TopN     int
	CacheTTL time.Duration
}

// RetentionConfig configures scheduled purging. An empty Schedule disables it.
type RetentionConfig struct {
	Schedule string
	MaxAge   time.Duration
}

// AuthConfig holds admin token configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key (32 bytes). Set by auth.LoadOrGenerateKey in main.
	AdminTokenKey      []byte
	AdminTokenDuration time.Duration
}

// LoadConfig loads configuration from os.Args with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadConfig over an explicit argument list.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("podropsquare", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, pretty)")
	dataPath := fs.String("data-path", "", "Base path for score data")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	storeBackend := fs.String("store", "", "Score store backend (badger, sqlite)")
	storeTimeout := fs.String("store-timeout", "", "Per-call store deadline (default: 2s)")
	purgeTimeout := fs.String("store-purge-timeout", "", "Retention sweep deadline (default: 10m)")

	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	maxConns := fs.String("max-connections", "", "Maximum concurrent HTTP connections (default: 1024)")
	origins := fs.String("allowed-origins", "", "Comma-separated CORS origins (default: *)")
	advertiseMDNS := fs.String("advertise-mdns", "", "Announce the server via mDNS (default: false)")

	minSurvival := fs.String("min-survival", "", "Lowest plausible survival time in seconds (default: 0.25)")
	maxSurvival := fs.String("max-survival", "", "Highest plausible survival time in seconds (default: 20)")
	maxSkew := fs.String("max-clock-skew", "", "Allowed client clock skew (default: 10m)")
	secretFile := fs.String("signature-secret-file", "", "File holding the session signing secret")

	rlLimit := fs.String("rate-limit", "", "Submissions per player per window (default: 5)")
	rlWindow := fs.String("rate-window", "", "Rate-limit window length (default: 60s)")

	topN := fs.String("top-n", "", "Leaderboard size (default: 10)")
	cacheTTL := fs.String("cache-ttl", "", "Leaderboard cache TTL (default: 5s)")

	retentionSchedule := fs.String("retention-schedule", "", "Cron spec for retention purges (empty disables)")
	retentionMaxAge := fs.String("retention-max-age", "", "Age after which scores are purged (default: 2160h)")

	adminTokenDuration := fs.String("admin-token-duration", "", "Admin token lifetime (default: 1h)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getConfigValue(*storeBackend, "STORE_BACKEND", BackendBadger)),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*port, "SERVER_PORT", "8080"),
			MaxConnections: getIntConfigValue(*maxConns, "SERVER_MAX_CONNECTIONS", 1024),
			AllowedOrigins: splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "*")),
			IPRate:         getFloatConfigValue("", "SERVER_IP_RATE", 2),
			IPBurst:        getIntConfigValue("", "SERVER_IP_BURST", 10),
			AdvertiseMDNS:  getBoolConfigValue(*advertiseMDNS, "ADVERTISE_MDNS", false),
		},
		Game: GameConfig{
			MinSurvivalSeconds:  getFloatConfigValue(*minSurvival, "GAME_MIN_SURVIVAL_SECONDS", 0.25),
			MaxSurvivalSeconds:  getFloatConfigValue(*maxSurvival, "GAME_MAX_SURVIVAL_SECONDS", 20),
			SignatureSecret:     getConfigValue("", "SIGNATURE_SECRET", ""),
			SignatureSecretFile: getConfigValue(*secretFile, "SIGNATURE_SECRET_FILE", ""),
		},
		RateLimit: RateLimitConfig{
			Limit: getIntConfigValue(*rlLimit, "RATE_LIMIT", 5),
		},
		Leaderboard: LeaderboardConfig{
			TopN: getIntConfigValue(*topN, "LEADERBOARD_TOP_N", 10),
		},
		Retention: RetentionConfig{
			Schedule: getConfigValue(*retentionSchedule, "RETENTION_SCHEDULE", ""),
		},
	}

	durations := []struct {
		dst  *time.Duration
		flag string
		env  string
		def  string
	}{
		{&cfg.Store.Timeout, *storeTimeout, "STORE_TIMEOUT", "2s"},
		{&cfg.Store.PurgeTimeout, *purgeTimeout, "STORE_PURGE_TIMEOUT", "10m"},
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Game.MaxClockSkew, *maxSkew, "GAME_MAX_CLOCK_SKEW", "10m"},
		{&cfg.RateLimit.Window, *rlWindow, "RATE_WINDOW", "60s"},
		{&cfg.Leaderboard.CacheTTL, *cacheTTL, "LEADERBOARD_CACHE_TTL", "5s"},
		{&cfg.Retention.MaxAge, *retentionMaxAge, "RETENTION_MAX_AGE", "2160h"},
		{&cfg.Auth.AdminTokenDuration, *adminTokenDuration, "ADMIN_TOKEN_DURATION", "1h"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.env, d.def)
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.env, raw, err)
		}
		*d.dst = v
	}

	if cfg.Game.SignatureSecretFile != "" {
		secret, err := ReadSecretFile(cfg.Game.SignatureSecretFile)
		if err != nil {
			return nil, err
		}
		cfg.Game.SignatureSecret = secret
	}

	if cfg.Game.SignatureSecret == "" && cfg.App.Environment != "production" {
		cfg.Game.SignatureSecret = DevSignatureSecret
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Store.Backend != BackendBadger && c.Store.Backend != BackendSQLite {
		return fmt.Errorf("invalid store backend: %s (must be badger or sqlite)", c.Store.Backend)
	}
	if c.Store.Timeout <= 0 {
		return errors.New("store timeout must be positive")
	}
	if c.Store.PurgeTimeout <= 0 {
		return errors.New("store purge timeout must be positive")
	}

	g := c.Game
	if g.MinSurvivalSeconds <= 0 || g.MaxSurvivalSeconds < g.MinSurvivalSeconds {
		return fmt.Errorf("invalid survival bounds [%g, %g]", g.MinSurvivalSeconds, g.MaxSurvivalSeconds)
	}
	if g.MaxClockSkew <= 0 {
		return errors.New("max clock skew must be positive")
	}
	if g.SignatureSecret == "" {
		return errors.New("SIGNATURE_SECRET is required in production")
	}
	if c.App.Environment == "production" && g.SignatureSecret == DevSignatureSecret {
		return errors.New("SIGNATURE_SECRET must not use the development default in production")
	}

	if c.RateLimit.Limit < 1 {
		return fmt.Errorf("rate limit must be at least 1, got %d", c.RateLimit.Limit)
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate window must be positive")
	}

	if c.Leaderboard.TopN < 1 {
		return fmt.Errorf("leaderboard top-n must be at least 1, got %d", c.Leaderboard.TopN)
	}
	if c.Leaderboard.CacheTTL <= 0 {
		return errors.New("leaderboard cache ttl must be positive")
	}

	if c.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
			return fmt.Errorf("invalid retention schedule %q: %w", c.Retention.Schedule, err)
		}
		if c.Retention.MaxAge <= 0 {
			return errors.New("retention max age must be positive when a schedule is set")
		}
	}

	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = abs
	}

	return filepath.Clean(path), nil
}

// expandDataPath resolves the data directory, defaulting to ~/PoDropSquare/data.
func (c *Config) expandDataPath() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.Data.BasePath, filepath.Join(home, "PoDropSquare", "data"))
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
// Unparseable values fall back to the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return v
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

// getBoolConfigValue returns a bool from flag, env var, or default.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return v
}

// ReadSecretFile reads a secret from path, trimming surrounding whitespace.
func ReadSecretFile(path string) (string, error) {
	//#nosec G304 -- path comes from operator configuration
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read signature secret file: %w", err)
	}
	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return "", fmt.Errorf("signature secret file %s is empty", path)
	}
	return secret, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments). Variables already present
// in the environment are left alone.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}

	return scanner.Err()
}
