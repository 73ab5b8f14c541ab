// Package logger provides the structured logging interface used throughout pricecrawl.
//
// It wraps zerolog with a small interface so packages can take a Logger and tests can
// substitute a TestLogger or a no-op logger.
//
// Basic Usage:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//
//	logger.GetLogger().WithField("level", "cities").Info("Enumerated items")
//	log.WithError(err).Error("Failed to persist checkpoint")
//
// Console output is colorized and written to stderr. Set Format to "json" for
// machine-readable output, and File to additionally append every entry to a file.
package logger
