package cli

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/getmockd/odatad/pkg/config"
	"github.com/getmockd/odatad/pkg/seed"
)

// configFlags are the flags that override configuration file values.
type configFlags struct {
	configFile  string
	host        string
	port        int
	logLevel    string
	logFormat   string
	logFile     string
	maxPageSize int
	noSeed      bool
	seedFiles   []string
	rateLimit   float64
}

func (f *configFlags) register(fs *pflag.FlagSet) {
	defaults := config.DefaultServerConfiguration()
	fs.StringVarP(&f.configFile, "config", "c", "", "Path to configuration file (YAML or JSON)")
	fs.StringVar(&f.host, "host", defaults.Host, "Interface to listen on (empty = all)")
	fs.IntVarP(&f.port, "port", "p", defaults.Port, "HTTP server port")
	fs.StringVar(&f.logLevel, "log-level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", defaults.Log.Format, "Log format (text, json)")
	fs.StringVar(&f.logFile, "log-file", "", "Also write JSON logs to this file")
	fs.IntVar(&f.maxPageSize, "max-page-size", defaults.MaxPageSize, "Maximum entities per list response (0 = unlimited)")
	fs.BoolVar(&f.noSeed, "no-seed", false, "Start with an empty store")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0, "Requests per second allowed per client (0 = unlimited)")
	fs.StringSliceVar(&f.seedFiles, "seed-file", nil, "Seed file glob pattern, replaces the built-in dataset (repeatable)")
}

// resolveConfig builds the effective configuration. Precedence, lowest
// first: defaults, configuration file, environment, flags that were set.
func resolveConfig(fs *pflag.FlagSet, f *configFlags, lookupEnv func(string) (string, bool)) (*config.ServerConfiguration, error) {
	cfg := config.DefaultServerConfiguration()
	if f.configFile != "" {
		loaded, err := config.LoadFromFile(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", f.configFile, err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		return nil, err
	}

	if fs.Changed("host") {
		cfg.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if fs.Changed("log-file") {
		cfg.Log.File = f.logFile
	}
	if fs.Changed("max-page-size") {
		cfg.MaxPageSize = f.maxPageSize
	}
	if fs.Changed("rate-limit") {
		cfg.RateLimit.RequestsPerSecond = f.rateLimit
	}
	if fs.Changed("no-seed") {
		cfg.Seed.Disabled = f.noSeed
	}
	if fs.Changed("seed-file") {
		// Patterns given on the command line are relative to the working
		// directory, not the configuration file.
		cfg.Seed.Files = f.seedFiles
		if wd, err := os.Getwd(); err == nil {
			cfg.BaseDir = wd
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDataset returns the dataset cfg asks for: the seed files when any are
// configured, the built-in dataset otherwise.
func loadDataset(cfg *config.ServerConfiguration) (seed.Dataset, error) {
	if len(cfg.Seed.Files) == 0 {
		return seed.Default(), nil
	}
	d, err := seed.LoadFiles(cfg.Seed.Files, cfg.BaseDir)
	if err != nil {
		return seed.Dataset{}, fmt.Errorf("loading seed files: %w", err)
	}
	return d, nil
}
