// Package logger provides structured logging for nebula-columnar
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	mu           sync.Mutex
)

// contextKey is the type for context keys
type contextKey string

const (
	// TransferIDKey is the context key for the transfer (run) id
	TransferIDKey contextKey = "transfer_id"
	// SourceKey is the context key for the source kind
	SourceKey contextKey = "source"
	// PartitionKey is the context key for the partition index
	PartitionKey contextKey = "partition"
)

// Config represents logger configuration
type Config struct {
	Level       string
	Development bool
	Encoding    string // json or console
	OutputPaths []string
}

// Init builds the global logger from cfg. The first successful call wins;
// later calls are ignored so that packages can call Init defensively.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		return nil
	}
	l, err := New(cfg)
	if err != nil {
		return err
	}
	globalLogger = l
	return nil
}

// New creates a zap logger from cfg without touching the global logger.
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	if cfg.Development {
		logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return logger, nil
}

// Get returns the global logger
func Get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger == nil {
		l, err := New(Config{Level: "info", Encoding: "json"})
		if err != nil {
			l = zap.NewNop()
		}
		globalLogger = l
	}
	return globalLogger
}

// OrGlobal returns l, or the global logger when l is nil. Constructors use it
// so callers may pass a nil logger.
func OrGlobal(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return Get()
}

// WithTransfer returns a context carrying the transfer id and source kind.
func WithTransfer(ctx context.Context, transferID, source string) context.Context {
	ctx = context.WithValue(ctx, TransferIDKey, transferID)
	return context.WithValue(ctx, SourceKey, source)
}

// WithPartition returns a context carrying the partition index.
func WithPartition(ctx context.Context, partition int) context.Context {
	return context.WithValue(ctx, PartitionKey, partition)
}

// FromContext returns base enriched with the values stored in ctx.
func FromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	l := OrGlobal(base)

	if id, ok := ctx.Value(TransferIDKey).(string); ok {
		l = l.With(zap.String("transfer_id", id))
	}

	if source, ok := ctx.Value(SourceKey).(string); ok {
		l = l.With(zap.String("source", source))
	}

	if partition, ok := ctx.Value(PartitionKey).(int); ok {
		l = l.With(zap.Int("partition", partition))
	}

	return l
}

// Sync flushes any buffered log entries
func Sync() error {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
