package config

import (
	"fmt"

	"github.com/koalasec/photon-sync/internal/region"
	"github.com/koalasec/photon-sync/internal/types"
)

// Validate checks cross-field constraints. A non-nil result is a
// *ConfigurationError and must abort startup.
func (c *Config) Validate() error {
	if err := c.UpdateStrategy.Validate(); err != nil {
		return &ConfigurationError{Reason: err.Error()}
	}

	if c.UpdateInterval <= 0 {
		return &ConfigurationError{Reason: "update interval must be positive"}
	}

	if c.DownloadMaxRetries < 1 {
		return &ConfigurationError{Reason: fmt.Sprintf("download max retries must be at least 1, got %d", c.DownloadMaxRetries)}
	}

	if c.DownloadRateLimit < 0 {
		return &ConfigurationError{Reason: "download rate limit must not be negative"}
	}

	// A direct archive URL bypasses the region catalog and the mirror's
	// "latest" pointer, so scheduled updates cannot work against it.
	if c.FileURL != "" && c.UpdateStrategy != types.StrategyDisabled {
		return &ConfigurationError{Reason: "FILE_URL requires UPDATE_STRATEGY=DISABLED: a pinned archive cannot be updated on a schedule"}
	}

	if c.Region != "" {
		if _, err := region.Resolve(c.Region); err != nil {
			return &ConfigurationError{Reason: err.Error()}
		}
	}

	if c.FileURL == "" && c.BaseURL == "" {
		return &ConfigurationError{Reason: "either BASE_URL or FILE_URL must be set"}
	}

	if c.DataDir == "" {
		return &ConfigurationError{Reason: "data directory must not be empty"}
	}

	if c.ServiceGracePeriod <= 0 || c.ServiceStartupTimeout <= 0 {
		return &ConfigurationError{Reason: "service grace period and startup timeout must be positive"}
	}

	return nil
}
