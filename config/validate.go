package config

import "github.com/ndx-io/NDX/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Server port: 0 is invalid (omit for default), negative is invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.New("server.port cannot be 0 (omit for default port 8077)")
	}
	if c.Server.Port != nil && *c.Server.Port < 0 {
		return errors.Newf("server.port must be positive, got %d", *c.Server.Port)
	}

	// Sync workers: 0 = use default, negative = invalid
	if c.Sync.Workers < 0 {
		return errors.Newf("sync.workers must be >= 0, got %d", c.Sync.Workers)
	}

	if c.Sync.Mode != "" {
		switch c.Sync.Mode {
		case "download_new", "upload_new", "mirror_to_remote", "mirror_from_remote", "two_way":
		default:
			return errors.Newf("sync.mode %q is not a recognized mode", c.Sync.Mode)
		}
	}

	// Cloud knobs: 0 = use default, negative = invalid
	if c.Cloud.TimeoutSeconds < 0 {
		return errors.Newf("cloud.timeout_seconds must be >= 0, got %d", c.Cloud.TimeoutSeconds)
	}
	if c.Cloud.MaxRetries < 0 {
		return errors.Newf("cloud.max_retries must be >= 0, got %d", c.Cloud.MaxRetries)
	}
	if c.Cloud.RequestsPerSecond < 0 {
		return errors.Newf("cloud.requests_per_second must be >= 0, got %f", c.Cloud.RequestsPerSecond)
	}

	if c.Database.BusyTimeoutMS < 0 {
		return errors.Newf("database.busy_timeout_ms must be >= 0, got %d", c.Database.BusyTimeoutMS)
	}

	if c.DAQ.WatchDebounceMS < 0 {
		return errors.Newf("daq.watch_debounce_ms must be >= 0, got %d", c.DAQ.WatchDebounceMS)
	}

	return nil
}
