// Package logger provides the structured logging interface used across
// catalogfetch.
//
// It wraps zerolog. Console output is human-readable when attached to a
// terminal and JSON lines otherwise; an optional log file always receives
// JSON.
//
//	cfg := &config.LoggingConfig{Level: "info", File: "fetch.log"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//	logger.WithField("product_id", "1042").Info("Fetched product")
//
// Components take a Logger in their constructors. Tests pass NewNopLogger
// or NewTestLogger to inspect what was logged.
package logger
