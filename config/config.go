package config

// Config represents the core NDX configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Cloud    CloudConfig    `mapstructure:"cloud"`
	Sync     SyncConfig     `mapstructure:"sync"`
	DAQ      DAQConfig      `mapstructure:"daq"`
}

// DatabaseConfig configures the per-session SQLite database
type DatabaseConfig struct {
	BusyTimeoutMS int `mapstructure:"busy_timeout_ms"` // SQLite busy timeout (default: 5000)
}

// ServerConfig configures the NDX graph server
type ServerConfig struct {
	Port           *int     `mapstructure:"port"` // Server port: nil = default 8077, 0 is invalid (omit for default)
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Server port constants
const (
	DefaultServerPort  = 8077 // Development port (easy to type, above privileged range)
	FallbackServerPort = 7807 // Fallback when the default is taken
)

// CloudConfig configures NDX Cloud API access
type CloudConfig struct {
	APIURL            string  `mapstructure:"api_url"`             // API endpoint (default: production)
	Token             string  `mapstructure:"token"`               // Bearer token from ndx cloud login
	Organization      string  `mapstructure:"organization"`        // Organization ID for dataset operations
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`     // Request timeout in seconds (default: 120)
	MaxRetries        int     `mapstructure:"max_retries"`         // Retries on 5xx and 429 (default: 3)
	RequestsPerSecond float64 `mapstructure:"requests_per_second"` // Client-side rate limit (default: 10)
}

// SyncConfig configures dataset synchronization
type SyncConfig struct {
	Mode    string `mapstructure:"mode"`    // Default sync mode: download_new, upload_new, mirror_to_remote, mirror_from_remote, two_way
	Workers int    `mapstructure:"workers"` // Concurrent transfers per sync run (default: 4)
}

// DAQConfig configures acquisition-directory watching
type DAQConfig struct {
	WatchDebounceMS int `mapstructure:"watch_debounce_ms"` // Quiet period before epochs rescan (default: 500)
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
