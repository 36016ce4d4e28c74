// Package log provides the logging abstraction used by wateringctl
// components.
//
// # Usage
//
// Use the provided zerolog adapter:
//
//	logger := log.NewZerologLogger(zerolog.New(os.Stderr))
//
// build one from a level and format:
//
//	logger, err := log.New(os.Stderr, "debug", "json")
//
// or use the no-op logger for testing:
//
//	logger := log.NewNoopLogger()
//
// # Custom Loggers
//
// Implement the Logger interface to integrate with your existing
// logging infrastructure:
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
package log
