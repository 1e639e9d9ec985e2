package logger

import (
	"github.com/ndx-io/NDX/sym"
	"go.uber.org/zap"
)

// Symbol-aware logging helpers.
// These functions log with the glyph as a structured field, not in the message.
//
// Usage:
//
//	// Instead of:
//	logger.Infow(sym.Time + " Conversion path found", "edges", n)
//
//	// Use:
//	logger.TimeInfow("Conversion path found", "edges", n)
//
// This makes logs queryable by subsystem and keeps messages clean.

// TimeInfow logs an info message with the timesync glyph (⧖)
func TimeInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Time}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// TimeDebugw logs a debug message with the timesync glyph (⧖)
func TimeDebugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Time}, keysAndValues...)
		Logger.Debugw(msg, fields...)
	}
}

// DBInfow logs an info message with the storage glyph (⊔)
func DBInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.DB}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// DBDebugw logs a debug message with the storage glyph (⊔)
func DBDebugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.DB}, keysAndValues...)
		Logger.Debugw(msg, fields...)
	}
}

// CloudInfow logs an info message with the cloud glyph (⟳)
func CloudInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Cloud}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// CloudWarnw logs a warning message with the cloud glyph (⟳)
func CloudWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Cloud}, keysAndValues...)
		Logger.Warnw(msg, fields...)
	}
}

// WatchInfow logs an info message with the watcher glyph (⌖)
func WatchInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		fields := append([]interface{}{FieldSymbol, sym.Watch}, keysAndValues...)
		Logger.Infow(msg, fields...)
	}
}

// WithSymbol returns a logger with the given glyph as a field.
// For ad-hoc symbol usage not covered by the helpers above.
//
// Example:
//
//	feedLogger := logger.WithSymbol(sym.Feed)
//	feedLogger.Infow("Client connected", "client_id", id)
func WithSymbol(symbol string) *zap.SugaredLogger {
	return Logger.With(FieldSymbol, symbol)
}

// Instance logger wrappers.
// These wrap any logger with a glyph field, useful when a component holds
// its own logger (e.g. s.logger) rather than using the global Logger.

// AddTimeSymbol wraps a logger with the timesync glyph (⧖)
func AddTimeSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Time)
}

// AddDBSymbol wraps a logger with the storage glyph (⊔)
func AddDBSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.DB)
}

// AddCloudSymbol wraps a logger with the cloud glyph (⟳)
func AddCloudSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Cloud)
}

// AddFeedSymbol wraps a logger with the feed glyph (⇌)
func AddFeedSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Feed)
}

// AddDAQSymbol wraps a logger with the acquisition glyph (≋)
func AddDAQSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.DAQ)
}
