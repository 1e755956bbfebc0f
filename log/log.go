// Package log provides a thin structured-logging wrapper used throughout
// wineventchain, mirroring the module-scoped logger idiom used across the
// rest of this codebase (a logger instance per package, created once at
// package init and enriched with contextual fields per call site).
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a contextual logger tracking a module name and any key-value
// pairs bound to it via With.
type Logger struct {
	sugar *zap.SugaredLogger
}

var (
	baseOnce sync.Once
	base     *zap.Logger
)

func baseLogger() *zap.Logger {
	baseOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}

		if os.Getenv("WINEVENTCHAIN_LOG_FORMAT") == "console" {
			cfg.Encoding = "console"
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		l, err := cfg.Build()
		if err != nil {
			// Fall back to a no-op logger rather than panic on misconfiguration.
			l = zap.NewNop()
		}
		base = l
	})
	return base
}

// NewModuleLogger returns a Logger scoped to module, ready for further
// contextual enrichment via With.
func NewModuleLogger(module string) *Logger {
	return &Logger{sugar: baseLogger().Sugar().With("module", module)}
}

// With returns a derived Logger with additional key-value pairs bound to
// every subsequent log call.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Sync flushes any buffered log entries. Should be called before process exit.
func Sync() error {
	if base == nil {
		return nil
	}
	return base.Sync()
}

// Module name constants, mirroring the per-package logger convention used
// across this repository.
const (
	ModuleKVStore         = "kvstore"
	ModuleDiskQueue       = "diskqueue"
	ModuleRetryQueue      = "retryqueue"
	ModuleVerifyingClient = "verifyingclient"
	ModuleBlockchain      = "blockchain"
	ModuleOffChain        = "offchain"
	ModuleCollector       = "collector"
	ModuleDispatch        = "dispatch"
	ModuleState           = "state"
	ModuleConfig          = "config"
	ModuleAgent           = "agent"
)
