package config

import (
	"time"
)

// ServerConfiguration defines the server runtime settings.
type ServerConfiguration struct {
	// Host is the interface to bind; empty means all interfaces.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	// Port is the HTTP listen port
	Port int `json:"port" yaml:"port"`
	// ReadTimeout is the HTTP read timeout in seconds
	ReadTimeout int `json:"readTimeout" yaml:"readTimeout"`
	// WriteTimeout is the HTTP write timeout in seconds
	WriteTimeout int `json:"writeTimeout" yaml:"writeTimeout"`
	// ShutdownTimeout bounds graceful shutdown, in seconds
	ShutdownTimeout int `json:"shutdownTimeout" yaml:"shutdownTimeout"`
	// MaxBodySize is the maximum request body size in bytes
	MaxBodySize int64 `json:"maxBodySize" yaml:"maxBodySize"`
	// MaxPageSize caps entities per list response (0 = unlimited)
	MaxPageSize int `json:"maxPageSize" yaml:"maxPageSize"`

	Log       LogConfig       `json:"log" yaml:"log"`
	Seed      SeedConfig      `json:"seed" yaml:"seed"`
	RateLimit RateLimitConfig `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`

	// BaseDir resolves relative seed file patterns. LoadFromFile sets it to
	// the directory of the configuration file.
	BaseDir string `json:"-" yaml:"-"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`
	// Format is text or json
	Format string `json:"format" yaml:"format"`
	// File, when set, also receives every record as JSON.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// SeedConfig controls the initial dataset.
type SeedConfig struct {
	// Disabled starts the server with an empty store.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	// Files are glob patterns of seed files that replace the built-in dataset.
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// RateLimitConfig throttles each client address. A zero rate disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64  `json:"requestsPerSecond,omitempty" yaml:"requestsPerSecond,omitempty"`
	Burst             int      `json:"burst,omitempty" yaml:"burst,omitempty"`
	TrustedProxies    []string `json:"trustedProxies,omitempty" yaml:"trustedProxies,omitempty"`
}

// Enabled reports whether rate limiting is configured.
func (r RateLimitConfig) Enabled() bool {
	return r.RequestsPerSecond > 0
}

// DefaultServerConfiguration returns a ServerConfiguration with sensible defaults.
func DefaultServerConfiguration() *ServerConfiguration {
	return &ServerConfiguration{
		Port:            8080,
		ReadTimeout:     30,
		WriteTimeout:    30,
		ShutdownTimeout: 10,
		MaxBodySize:     1024 * 1024, // 1MB
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// ReadTimeoutDuration returns ReadTimeout as a time.Duration.
func (s *ServerConfiguration) ReadTimeoutDuration() time.Duration { return seconds(s.ReadTimeout) }

// WriteTimeoutDuration returns WriteTimeout as a time.Duration.
func (s *ServerConfiguration) WriteTimeoutDuration() time.Duration { return seconds(s.WriteTimeout) }

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (s *ServerConfiguration) ShutdownTimeoutDuration() time.Duration {
	return seconds(s.ShutdownTimeout)
}
