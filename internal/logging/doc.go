// Package logging provides structured logging utilities for outreach.
//
// This package centralizes logging patterns so the tracker, the dispatcher and the
// command layer emit the same attribute names, using the standard library's slog
// package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (contact email hashing)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithComponent(slog.Default(), "tracker")
//	logger.Info("cycle complete",
//	    logging.Count("migrated", 1),
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize contact addresses before logging:
//
//	logger.Info("send failed", logging.ContactHash(email), logging.Err(err))
package logging
