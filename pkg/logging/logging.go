package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level is a slog level; the constants below are the ones odatad accepts.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format selects the handler New builds for Output.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config describes a logger.
type Config struct {
	Level  Level
	Format Format

	// Output defaults to os.Stderr.
	Output io.Writer

	// Tee, when set, receives a JSON copy of every record written to Output.
	Tee io.Writer
}

// New builds a logger from cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var h slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(out, opts)
	}
	if cfg.Tee != nil {
		h = teeHandler{primary: h, copy: slog.NewJSONHandler(cfg.Tee, opts)}
	}
	return slog.New(h)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var levelNames = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// ParseLevel maps a case-insensitive level name to a Level, falling back to
// LevelInfo.
func ParseLevel(s string) Level {
	if l, ok := levelNames[strings.ToLower(s)]; ok {
		return l
	}
	return LevelInfo
}

// ParseFormat returns FormatJSON for "json" in any case and FormatText
// otherwise.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

// CheckLevel rejects a non-empty level ParseLevel would silently replace.
func CheckLevel(s string) error {
	if _, ok := levelNames[strings.ToLower(s)]; s != "" && !ok {
		return fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
	return nil
}

// CheckFormat rejects a non-empty format other than text or json.
func CheckFormat(s string) error {
	switch strings.ToLower(s) {
	case "", string(FormatText), string(FormatJSON):
		return nil
	}
	return fmt.Errorf("unknown log format %q (want text or json)", s)
}
