package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.busy_timeout_ms", 5000)

	// Cloud defaults
	v.SetDefault("cloud.api_url", "https://api.ndx.io/v1")
	v.SetDefault("cloud.timeout_seconds", 120)
	v.SetDefault("cloud.max_retries", 3)
	v.SetDefault("cloud.requests_per_second", 10.0)

	// Sync defaults
	v.SetDefault("sync.mode", "two_way")
	v.SetDefault("sync.workers", 4)

	// DAQ defaults
	v.SetDefault("daq.watch_debounce_ms", 500)

	// Server configuration defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Cloud credentials never belong in project config files
	v.BindEnv("cloud.token", "NDX_CLOUD_TOKEN")
	v.BindEnv("cloud.organization", "NDX_CLOUD_ORGANIZATION")
	v.BindEnv("cloud.api_url", "NDX_CLOUD_API_URL")
}

// GetServerPort returns the configured NDX server port
// Returns server.port from config, or DefaultServerPort (8077) if not configured
func GetServerPort() int {
	cfg, err := Load()
	if err != nil || cfg.Server.Port == nil || *cfg.Server.Port == 0 {
		return DefaultServerPort
	}
	return *cfg.Server.Port
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return []string{
			"http://localhost",
			"https://localhost",
			"http://127.0.0.1",
			"https://127.0.0.1",
		}
	}
	return c.Server.AllowedOrigins
}

// GetSyncWorkers returns the configured transfer concurrency
func (c *Config) GetSyncWorkers() int {
	if c.Sync.Workers <= 0 {
		return 4
	}
	return c.Sync.Workers
}

// GetDatabaseBusyTimeoutMS returns the SQLite busy timeout
func (c *Config) GetDatabaseBusyTimeoutMS() int {
	if c.Database.BusyTimeoutMS <= 0 {
		return 5000
	}
	return c.Database.BusyTimeoutMS
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Cloud: %s, Sync: {Mode: %s, Workers: %d}}",
		c.Cloud.APIURL, c.Sync.Mode, c.Sync.Workers)
}
