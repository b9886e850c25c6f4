// Package config handles the photon-sync configuration surface: environment
// variables, an optional config file, and a .env file, merged in that order of
// precedence (env wins over file, file wins over defaults).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/koalasec/photon-sync/internal/types"
)

// ConfigurationError is fatal: the process must not start with an invalid
// configuration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// Config is the resolved runtime configuration.
type Config struct {
	// Update pipeline.
	UpdateStrategy     types.Strategy
	UpdateInterval     time.Duration
	Region             string
	ForceUpdate        bool
	FileURL            string
	BaseURL            string
	DownloadMaxRetries int
	DownloadRateLimit  int64 // bytes/sec, 0 = unlimited
	SkipChecksum       bool
	InitialDownload    bool

	// Paths and ownership.
	DataDir string
	RunUID  int
	RunGID  int

	// Consumer process.
	JavaBin      string
	JarPath      string
	JavaArgs     []string
	ConsumerArgs []string

	// Service health contract.
	ServiceURL            string
	ServiceGracePeriod    time.Duration
	ServiceStartupTimeout time.Duration

	// Observability.
	LogLevel    string
	LogFile     string
	MetricsAddr string
	NotifyURLs  []string
}

// defaults returns a Config populated with every default value.
func defaults() *Config {
	return &Config{
		UpdateStrategy:        types.StrategySequential,
		UpdateInterval:        30 * 24 * time.Hour,
		BaseURL:               "https://r2.koalasec.org/public",
		DownloadMaxRetries:    3,
		InitialDownload:       true,
		DataDir:               "/photon/data",
		RunUID:                -1,
		RunGID:                -1,
		JavaBin:               "java",
		JarPath:               "/photon/photon.jar",
		ServiceURL:            "http://127.0.0.1:2322/status",
		ServiceGracePeriod:    30 * time.Second,
		ServiceStartupTimeout: 5 * time.Minute,
		LogLevel:              "info",
	}
}

// Load builds the configuration. filePath optionally points at a TOML, YAML,
// or JSON config file; when empty, the CONFIG_FILE variable is consulted. A
// .env file in the working directory is loaded first if present.
func Load(filePath string) (*Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	cfg := defaults()

	if filePath == "" {
		filePath = os.Getenv("CONFIG_FILE")
	}
	if filePath != "" {
		if err := applyFile(cfg, filePath); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto cfg. Variable names follow the
// established container interface (UPDATE_STRATEGY, REGION, ...).
func applyEnv(cfg *Config) error {
	var err error

	if v, ok := lookup("UPDATE_STRATEGY"); ok {
		cfg.UpdateStrategy, err = types.ParseStrategy(v)
		if err != nil {
			return &ConfigurationError{Reason: err.Error()}
		}
	}
	if v, ok := lookup("UPDATE_INTERVAL"); ok {
		cfg.UpdateInterval, err = ParseDuration(v)
		if err != nil {
			return &ConfigurationError{Reason: "UPDATE_INTERVAL: " + err.Error()}
		}
	}

	setString(&cfg.Region, "REGION")
	setBool(&cfg.ForceUpdate, "FORCE_UPDATE")
	setString(&cfg.FileURL, "FILE_URL")
	setString(&cfg.BaseURL, "BASE_URL")
	if err := setInt(&cfg.DownloadMaxRetries, "DOWNLOAD_MAX_RETRIES"); err != nil {
		return err
	}
	if err := setInt64(&cfg.DownloadRateLimit, "DOWNLOAD_RATE_LIMIT"); err != nil {
		return err
	}
	setBool(&cfg.SkipChecksum, "SKIP_MD5_CHECK")
	setBool(&cfg.InitialDownload, "INITIAL_DOWNLOAD")

	setString(&cfg.DataDir, "DATA_DIR")
	if err := setInt(&cfg.RunUID, "PUID"); err != nil {
		return err
	}
	if err := setInt(&cfg.RunGID, "PGID"); err != nil {
		return err
	}

	setString(&cfg.JavaBin, "JAVA_BIN")
	setString(&cfg.JarPath, "PHOTON_JAR")
	setArgs(&cfg.JavaArgs, "JAVA_PARAMS")
	setArgs(&cfg.ConsumerArgs, "PHOTON_PARAMS")

	setString(&cfg.ServiceURL, "SERVICE_URL")
	if v, ok := lookup("SERVICE_GRACE_PERIOD"); ok {
		cfg.ServiceGracePeriod, err = ParseDuration(v)
		if err != nil {
			return &ConfigurationError{Reason: "SERVICE_GRACE_PERIOD: " + err.Error()}
		}
	}
	if v, ok := lookup("SERVICE_STARTUP_TIMEOUT"); ok {
		cfg.ServiceStartupTimeout, err = ParseDuration(v)
		if err != nil {
			return &ConfigurationError{Reason: "SERVICE_STARTUP_TIMEOUT: " + err.Error()}
		}
	}

	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFile, "LOG_FILE")
	setString(&cfg.MetricsAddr, "METRICS_ADDR")
	if v, ok := lookup("NOTIFY_URLS"); ok {
		cfg.NotifyURLs = splitList(v)
	}

	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		*dst = parseBool(v)
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return &ConfigurationError{Reason: key + " must be an integer, got '" + v + "'"}
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return &ConfigurationError{Reason: key + " must be an integer, got '" + v + "'"}
	}
	*dst = n
	return nil
}

func setArgs(dst *[]string, key string) {
	if v, ok := lookup(key); ok {
		*dst = strings.Fields(v)
	}
}

// parseBool accepts the truthy spellings used by the container interface.
func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "t", "yes":
		return true
	}
	return false
}

// splitList splits a comma- or whitespace-separated list.
func splitList(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
