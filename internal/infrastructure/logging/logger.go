// Package logging provides structured logging infrastructure for the yardsync application.
// It wraps Go's standard log/slog package with context-aware logging, correlation IDs,
// and domain-specific log attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// contextKey is used for storing logger-related values in context.
type contextKey string

const (
	// CorrelationIDKey is the context key for correlation IDs.
	CorrelationIDKey contextKey = "correlation_id"
	// OperationIDKey is the context key for queued operation IDs.
	OperationIDKey contextKey = "operation_id"
	// EntityIDKey is the context key for truck or loading record IDs.
	EntityIDKey contextKey = "entity_id"
	// RecordKindKey is the context key for record kinds (truck, loading, document).
	RecordKindKey contextKey = "record_kind"
	// SyncCycleKey is the context key for sync cycle identifiers.
	SyncCycleKey contextKey = "sync_cycle"
)

// Level represents log levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format represents log output formats.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     os.Stderr,
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger with additional functionality for yardsync.
type Logger struct {
	slogger *slog.Logger
	level   slog.Level
	mu      sync.RWMutex
}

// global is the package-level default logger.
var (
	global     *Logger
	globalOnce sync.Once
)

// Init initializes the global logger with the provided configuration.
func Init(cfg Config) *Logger {
	globalOnce.Do(func() {
		global = New(cfg)
	})
	return global
}

// Default returns the global logger, initializing it with defaults if necessary.
func Default() *Logger {
	if global == nil {
		Init(DefaultConfig())
	}
	return global
}

// New creates a new Logger with the provided configuration.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize time format
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return a
		},
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		slogger: slog.New(handler),
		level:   level,
	}
}

// parseLevel converts a Level to slog.Level.
func parseLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel dynamically changes the log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = parseLevel(level)
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slogger: l.slogger.With(args...),
		level:   l.level,
	}
}

// WithGroup returns a new Logger with the given group name.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{
		slogger: l.slogger.WithGroup(name),
		level:   l.level,
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slogger.Debug(msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.slogger.Info(msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slogger.Warn(msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.slogger.Error(msg, args...)
}

// DebugContext logs at debug level with context.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slogger.DebugContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// InfoContext logs at info level with context.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slogger.InfoContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// WarnContext logs at warn level with context.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slogger.WarnContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// ErrorContext logs at error level with context.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slogger.ErrorContext(ctx, msg, l.enrichArgs(ctx, args)...)
}

// enrichArgs extracts context values and adds them as log attributes.
func (l *Logger) enrichArgs(ctx context.Context, args []any) []any {
	enriched := make([]any, 0, len(args)+10)

	// Extract standard context values
	if v := ctx.Value(CorrelationIDKey); v != nil {
		enriched = append(enriched, "correlation_id", v)
	}
	if v := ctx.Value(OperationIDKey); v != nil {
		enriched = append(enriched, "operation_id", v)
	}
	if v := ctx.Value(EntityIDKey); v != nil {
		enriched = append(enriched, "entity_id", v)
	}
	if v := ctx.Value(RecordKindKey); v != nil {
		enriched = append(enriched, "record_kind", v)
	}
	if v := ctx.Value(SyncCycleKey); v != nil {
		enriched = append(enriched, "sync_cycle", v)
	}

	enriched = append(enriched, args...)
	return enriched
}

// Underlying returns the underlying slog.Logger.
func (l *Logger) Underlying() *slog.Logger {
	return l.slogger
}

// --- Context helpers ---

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithOperationID adds a queued operation ID to the context.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, OperationIDKey, id)
}

// WithEntityID adds a record ID to the context.
func WithEntityID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, EntityIDKey, id)
}

// WithRecordKind adds a record kind to the context.
func WithRecordKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, RecordKindKey, kind)
}

// WithSyncCycle adds a sync cycle identifier to the context.
func WithSyncCycle(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SyncCycleKey, id)
}

// CorrelationID extracts the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if v := ctx.Value(CorrelationIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// CorrelationIDFromContext is an alias for CorrelationID for semantic clarity.
func CorrelationIDFromContext(ctx context.Context) string {
	return CorrelationID(ctx)
}

// --- Domain-specific logging helpers ---

// LogSyncStart logs the start of a sync cycle.
func LogSyncStart(ctx context.Context, logger *Logger, trigger string) {
	logger.DebugContext(ctx, "sync cycle started",
		"trigger", trigger,
	)
}

// LogSyncComplete logs the completion of a sync cycle.
func LogSyncComplete(ctx context.Context, logger *Logger, trigger string, adopted, skipped int, duration time.Duration) {
	logger.InfoContext(ctx, "sync cycle completed",
		"trigger", trigger,
		"adopted_records", adopted,
		"skipped_records", skipped,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogSyncFailed logs a failed sync cycle.
func LogSyncFailed(ctx context.Context, logger *Logger, trigger string, err error, duration time.Duration) {
	logger.WarnContext(ctx, "sync cycle failed",
		"trigger", trigger,
		"error", err.Error(),
		"duration_ms", duration.Milliseconds(),
	)
}

// LogOperationEnqueued logs a newly queued operation.
func LogOperationEnqueued(ctx context.Context, logger *Logger, operationID, kind, entityID string, coalesced bool) {
	logger.DebugContext(ctx, "operation enqueued",
		"operation_id", operationID,
		"kind", kind,
		"entity_id", entityID,
		"coalesced", coalesced,
	)
}

// LogOperationCompleted logs a successfully drained operation.
func LogOperationCompleted(ctx context.Context, logger *Logger, operationID string, retries int, duration time.Duration) {
	logger.InfoContext(ctx, "operation completed",
		"operation_id", operationID,
		"retries", retries,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogOperationRetry logs a failed attempt that will be retried.
func LogOperationRetry(ctx context.Context, logger *Logger, operationID string, retryCount int, backoff time.Duration, err error) {
	logger.WarnContext(ctx, "operation retry scheduled",
		"operation_id", operationID,
		"retry_count", retryCount,
		"backoff_ms", backoff.Milliseconds(),
		"error", err.Error(),
	)
}

// LogOperationFailed logs an operation that exhausted its retries.
func LogOperationFailed(ctx context.Context, logger *Logger, operationID string, err error) {
	logger.ErrorContext(ctx, "operation failed permanently",
		"operation_id", operationID,
		"error", err.Error(),
	)
}

// LogConflictRaised logs a conflict escalated for human resolution.
func LogConflictRaised(ctx context.Context, logger *Logger, conflictID, operationID, entityID string) {
	logger.WarnContext(ctx, "conflict raised",
		"conflict_id", conflictID,
		"operation_id", operationID,
		"entity_id", entityID,
	)
}

// LogConflictResolved logs a resolved conflict.
func LogConflictResolved(ctx context.Context, logger *Logger, operationID, resolution string) {
	logger.InfoContext(ctx, "conflict resolved",
		"operation_id", operationID,
		"resolution", resolution,
	)
}

// LogRemoteRequest logs an outgoing remote store request.
func LogRemoteRequest(ctx context.Context, logger *Logger, method, path string) {
	logger.DebugContext(ctx, "remote store request",
		"method", method,
		"path", path,
	)
}

// LogRemoteResponse logs a remote store response.
func LogRemoteResponse(ctx context.Context, logger *Logger, method string, status int, latency time.Duration) {
	logger.DebugContext(ctx, "remote store response",
		"method", method,
		"status", status,
		"latency_ms", latency.Milliseconds(),
	)
}

// LogConnectivityChange logs an online/offline transition.
func LogConnectivityChange(ctx context.Context, logger *Logger, online bool) {
	logger.InfoContext(ctx, "connectivity changed",
		"online", online,
	)
}

// LogRetentionPurge logs records removed by the retention sweep.
func LogRetentionPurge(ctx context.Context, logger *Logger, purged int, cutoff time.Time) {
	logger.InfoContext(ctx, "retention purge",
		"purged_records", purged,
		"cutoff", cutoff.Format(time.RFC3339),
	)
}

// LogCacheRecovered logs a corrupt cache replaced with an empty document.
func LogCacheRecovered(ctx context.Context, logger *Logger, err error) {
	logger.WarnContext(ctx, "cached document unreadable, starting empty",
		"error", err.Error(),
	)
}
