package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Errors wrapped by LoadFromFile, ParseYAML and ParseJSON.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrInvalidJSON  = errors.New("invalid JSON syntax")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrEmptyFile    = errors.New("configuration file is empty")
)

// LoadFromFile decodes the file at path over the defaults, as YAML for a
// .yaml or .yml extension and as JSON otherwise. Unknown keys are rejected.
// BaseDir is set to the file's directory so seed patterns resolve next to it.
func LoadFromFile(path string) (*ServerConfiguration, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	case len(bytes.TrimSpace(data)) == 0:
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	parse := ParseJSON
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		parse = ParseYAML
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if dir, err := filepath.Abs(filepath.Dir(path)); err == nil {
		cfg.BaseDir = dir
	}
	return cfg, nil
}

// ParseYAML parses YAML bytes over the default configuration.
func ParseYAML(data []byte) (*ServerConfiguration, error) {
	cfg := DefaultServerConfiguration()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return cfg, nil
}

// ParseJSON parses JSON bytes over the default configuration.
func ParseJSON(data []byte) (*ServerConfiguration, error) {
	cfg := DefaultServerConfiguration()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return cfg, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvPort        = "ODATAD_PORT"
	EnvLogLevel    = "ODATAD_LOG_LEVEL"
	EnvLogFormat   = "ODATAD_LOG_FORMAT"
	EnvMaxPageSize = "ODATAD_MAX_PAGE_SIZE"
)

// ApplyEnv overrides settings from the environment. lookup is normally
// os.LookupEnv.
func (s *ServerConfiguration) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPort); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ValidationError{Field: EnvPort, Message: fmt.Sprintf("must be an integer, got %q", v)}
		}
		s.Port = n
	}
	if v, ok := lookup(EnvMaxPageSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ValidationError{Field: EnvMaxPageSize, Message: fmt.Sprintf("must be an integer, got %q", v)}
		}
		s.MaxPageSize = n
	}
	if v, ok := lookup(EnvLogLevel); ok {
		s.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		s.Log.Format = v
	}
	return nil
}

// ToYAML marshals the configuration to YAML bytes.
func (s *ServerConfiguration) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	return data, nil
}
