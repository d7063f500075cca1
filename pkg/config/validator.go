package config

import (
	"fmt"
	"net/netip"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/odatad/pkg/logging"
)

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const maxBodySizeLimit = 100 * 1024 * 1024

// Validate checks if the ServerConfiguration is valid.
func (s *ServerConfiguration) Validate() error {
	if s.Port <= 0 || s.Port >= 65536 {
		return &ValidationError{Field: "port", Message: "port must be between 1 and 65535"}
	}

	// Timeouts must be >= 0
	if s.ReadTimeout < 0 {
		return &ValidationError{Field: "readTimeout", Message: "readTimeout must be >= 0"}
	}
	if s.WriteTimeout < 0 {
		return &ValidationError{Field: "writeTimeout", Message: "writeTimeout must be >= 0"}
	}
	if s.ShutdownTimeout < 0 {
		return &ValidationError{Field: "shutdownTimeout", Message: "shutdownTimeout must be >= 0"}
	}

	if s.MaxBodySize <= 0 {
		return &ValidationError{Field: "maxBodySize", Message: "maxBodySize must be > 0"}
	}
	if s.MaxBodySize > maxBodySizeLimit {
		return &ValidationError{Field: "maxBodySize", Message: "maxBodySize must be <= 104857600 (100MB)"}
	}
	if s.MaxPageSize < 0 {
		return &ValidationError{Field: "maxPageSize", Message: "maxPageSize must be >= 0"}
	}

	if err := logging.CheckLevel(s.Log.Level); err != nil {
		return &ValidationError{Field: "log.level", Message: err.Error()}
	}
	if err := logging.CheckFormat(s.Log.Format); err != nil {
		return &ValidationError{Field: "log.format", Message: err.Error()}
	}

	for i, pattern := range s.Seed.Files {
		if !doublestar.ValidatePathPattern(pattern) {
			return &ValidationError{
				Field:   fmt.Sprintf("seed.files[%d]", i),
				Message: fmt.Sprintf("invalid glob pattern %q", pattern),
			}
		}
	}
	if s.Seed.Disabled && len(s.Seed.Files) > 0 {
		return &ValidationError{Field: "seed", Message: "seed files are set but seeding is disabled"}
	}
	if s.RateLimit.RequestsPerSecond < 0 {
		return &ValidationError{Field: "rateLimit.requestsPerSecond", Message: "requestsPerSecond must be >= 0"}
	}
	if s.RateLimit.Burst < 0 {
		return &ValidationError{Field: "rateLimit.burst", Message: "burst must be >= 0"}
	}
	for i, proxy := range s.RateLimit.TrustedProxies {
		if !validProxy(proxy) {
			return &ValidationError{
				Field:   fmt.Sprintf("rateLimit.trustedProxies[%d]", i),
				Message: fmt.Sprintf("%q is neither an IP address nor a CIDR prefix", proxy),
			}
		}
	}
	return nil
}

func validProxy(s string) bool {
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}
