// Package logging builds the log/slog loggers used across odatad.
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.ParseLevel("debug"),
//	    Format: logging.FormatJSON,
//	})
//	logger.Info("server started", "port", 8080)
//
// Components accept a *slog.Logger through an option and fall back to
// logging.Nop() when none is given.
package logging
