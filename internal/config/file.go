package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/koalasec/photon-sync/internal/types"
)

// Format represents the file format of a config file.
type Format int

const (
	FormatUnknown Format = iota
	FormatYAML
	FormatTOML
	FormatJSON
)

// detectFormat determines the file format based on extension or content.
func detectFormat(path string, content []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	}
	return sniffFormat(content)
}

// sniffFormat attempts to detect format from content for extensionless files.
func sniffFormat(content []byte) Format {
	trimmed := strings.TrimSpace(string(content))

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return FormatJSON
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, " = ") {
			return FormatTOML
		}
		if strings.Contains(line, ":") {
			return FormatYAML
		}
	}

	return FormatUnknown
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns in content.
func expandEnvVars(content []byte) []byte {
	return envVarPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		parts := envVarPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		value := os.Getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// fileConfig mirrors Config with pointer fields so that only keys present in
// the file are applied. Durations and the strategy are strings at this layer
// and parsed after unmarshalling.
type fileConfig struct {
	UpdateStrategy     *string  `yaml:"update_strategy" toml:"update_strategy" json:"update_strategy"`
	UpdateInterval     *string  `yaml:"update_interval" toml:"update_interval" json:"update_interval"`
	Region             *string  `yaml:"region" toml:"region" json:"region"`
	ForceUpdate        *bool    `yaml:"force_update" toml:"force_update" json:"force_update"`
	FileURL            *string  `yaml:"file_url" toml:"file_url" json:"file_url"`
	BaseURL            *string  `yaml:"base_url" toml:"base_url" json:"base_url"`
	DownloadMaxRetries *int     `yaml:"download_max_retries" toml:"download_max_retries" json:"download_max_retries"`
	DownloadRateLimit  *int64   `yaml:"download_rate_limit" toml:"download_rate_limit" json:"download_rate_limit"`
	SkipChecksum       *bool    `yaml:"skip_md5_check" toml:"skip_md5_check" json:"skip_md5_check"`
	InitialDownload    *bool    `yaml:"initial_download" toml:"initial_download" json:"initial_download"`
	DataDir            *string  `yaml:"data_dir" toml:"data_dir" json:"data_dir"`
	RunUID             *int     `yaml:"puid" toml:"puid" json:"puid"`
	RunGID             *int     `yaml:"pgid" toml:"pgid" json:"pgid"`
	JavaBin            *string  `yaml:"java_bin" toml:"java_bin" json:"java_bin"`
	JarPath            *string  `yaml:"photon_jar" toml:"photon_jar" json:"photon_jar"`
	JavaArgs           []string `yaml:"java_params" toml:"java_params" json:"java_params"`
	ConsumerArgs       []string `yaml:"photon_params" toml:"photon_params" json:"photon_params"`
	ServiceURL         *string  `yaml:"service_url" toml:"service_url" json:"service_url"`
	ServiceGracePeriod *string  `yaml:"service_grace_period" toml:"service_grace_period" json:"service_grace_period"`
	ServiceStartup     *string  `yaml:"service_startup_timeout" toml:"service_startup_timeout" json:"service_startup_timeout"`
	LogLevel           *string  `yaml:"log_level" toml:"log_level" json:"log_level"`
	LogFile            *string  `yaml:"log_file" toml:"log_file" json:"log_file"`
	MetricsAddr        *string  `yaml:"metrics_addr" toml:"metrics_addr" json:"metrics_addr"`
	NotifyURLs         []string `yaml:"notify_urls" toml:"notify_urls" json:"notify_urls"`
}

// applyFile reads, parses, and overlays a config file onto cfg.
func applyFile(cfg *Config, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("failed to read config file: %v", err)}
	}

	content = expandEnvVars(content)

	format := detectFormat(path, content)
	var fc fileConfig

	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(content, &fc)
	case FormatTOML:
		err = toml.Unmarshal(content, &fc)
	case FormatJSON:
		err = json.Unmarshal(content, &fc)
	default:
		return &ConfigurationError{Reason: "unable to detect config file format for " + path}
	}
	if err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("config file parse error: %v", err)}
	}

	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	var err error

	if fc.UpdateStrategy != nil {
		cfg.UpdateStrategy, err = types.ParseStrategy(*fc.UpdateStrategy)
		if err != nil {
			return &ConfigurationError{Reason: err.Error()}
		}
	}
	if fc.UpdateInterval != nil {
		cfg.UpdateInterval, err = ParseDuration(*fc.UpdateInterval)
		if err != nil {
			return &ConfigurationError{Reason: "update_interval: " + err.Error()}
		}
	}
	if fc.Region != nil {
		cfg.Region = *fc.Region
	}
	if fc.ForceUpdate != nil {
		cfg.ForceUpdate = *fc.ForceUpdate
	}
	if fc.FileURL != nil {
		cfg.FileURL = *fc.FileURL
	}
	if fc.BaseURL != nil {
		cfg.BaseURL = *fc.BaseURL
	}
	if fc.DownloadMaxRetries != nil {
		cfg.DownloadMaxRetries = *fc.DownloadMaxRetries
	}
	if fc.DownloadRateLimit != nil {
		cfg.DownloadRateLimit = *fc.DownloadRateLimit
	}
	if fc.SkipChecksum != nil {
		cfg.SkipChecksum = *fc.SkipChecksum
	}
	if fc.InitialDownload != nil {
		cfg.InitialDownload = *fc.InitialDownload
	}
	if fc.DataDir != nil {
		cfg.DataDir = *fc.DataDir
	}
	if fc.RunUID != nil {
		cfg.RunUID = *fc.RunUID
	}
	if fc.RunGID != nil {
		cfg.RunGID = *fc.RunGID
	}
	if fc.JavaBin != nil {
		cfg.JavaBin = *fc.JavaBin
	}
	if fc.JarPath != nil {
		cfg.JarPath = *fc.JarPath
	}
	if fc.JavaArgs != nil {
		cfg.JavaArgs = fc.JavaArgs
	}
	if fc.ConsumerArgs != nil {
		cfg.ConsumerArgs = fc.ConsumerArgs
	}
	if fc.ServiceURL != nil {
		cfg.ServiceURL = *fc.ServiceURL
	}
	if fc.ServiceGracePeriod != nil {
		cfg.ServiceGracePeriod, err = ParseDuration(*fc.ServiceGracePeriod)
		if err != nil {
			return &ConfigurationError{Reason: "service_grace_period: " + err.Error()}
		}
	}
	if fc.ServiceStartup != nil {
		cfg.ServiceStartupTimeout, err = ParseDuration(*fc.ServiceStartup)
		if err != nil {
			return &ConfigurationError{Reason: "service_startup_timeout: " + err.Error()}
		}
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.LogFile != nil {
		cfg.LogFile = *fc.LogFile
	}
	if fc.MetricsAddr != nil {
		cfg.MetricsAddr = *fc.MetricsAddr
	}
	if fc.NotifyURLs != nil {
		cfg.NotifyURLs = fc.NotifyURLs
	}

	return nil
}
