// Package logging provides categorized logging for autoeval.
// Each subsystem logs through a named category; all categories share one zap core
// so level, encoding and outputs are configured in a single place.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, CLI wiring
	CategoryConfig    Category = "config"    // Config load/save/watch
	CategoryControl   Category = "control"   // Pause/resume/stop transitions
	CategoryPacing    Category = "pacing"    // Delay sampling
	CategorySequencer Category = "sequencer" // Entity/item processing
	CategoryBrowser   Category = "browser"   // Rod front-end, dispatch
	CategoryMetrics   Category = "metrics"   // Prometheus recorder/endpoint
	CategoryUI        Category = "ui"        // Control panel
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // optional log file
	Console    bool            // also write to stderr
	Categories map[string]bool // per-category switch; missing = enabled
	AuditFile  string          // optional action journal (JSON lines)
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	root       = zap.NewNop()
	level      = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the shared zap logger from opts and returns it.
// It may be called again (e.g. after --verbose is parsed); cached category
// loggers are rebuilt on next Get.
func Initialize(opts Options) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(defaultString(opts.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	var cfg zap.Config
	if opts.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = lvl
	cfg.OutputPaths = nil
	if opts.Console {
		cfg.OutputPaths = append(cfg.OutputPaths, "stderr")
	}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	}

	logger := zap.NewNop()
	if len(cfg.OutputPaths) > 0 {
		logger, err = cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
	}

	if err := initAudit(opts.AuditFile); err != nil {
		return nil, err
	}

	mu.Lock()
	root = logger
	level = lvl
	categories = opts.Categories
	loggers = make(map[Category]*Logger)
	mu.Unlock()

	Get(CategoryBoot).Debug("logging initialized: level=%s format=%s file=%q", lvl.String(), defaultString(opts.Format, "json"), opts.File)
	return logger, nil
}

// SetLogger replaces the shared logger (tests, embedding).
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = l
	loggers = make(map[Category]*Logger)
}

// SetLevel changes the level of the shared logger at runtime.
func SetLevel(l zapcore.Level) {
	mu.RLock()
	defer mu.RUnlock()
	level.SetLevel(l)
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	enabled := IsCategoryEnabled(category)

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	base := zap.NewNop()
	if enabled {
		base = root.Named(string(category))
	}
	l := &Logger{category: category, sugar: base.Sugar()}
	loggers[category] = l
	return l
}

// Zap exposes the structured logger behind a category.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Sync flushes the shared logger and the audit journal.
func Sync() {
	mu.RLock()
	l := root
	mu.RUnlock()
	_ = l.Sync()
	syncAudit()
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// =============================================================================
// CATEGORY HELPERS
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }

func Config(format string, args ...interface{})     { Get(CategoryConfig).Info(format, args...) }
func ConfigWarn(format string, args ...interface{}) { Get(CategoryConfig).Warn(format, args...) }

func Control(format string, args ...interface{})      { Get(CategoryControl).Info(format, args...) }
func ControlDebug(format string, args ...interface{}) { Get(CategoryControl).Debug(format, args...) }

func PacingDebug(format string, args ...interface{}) { Get(CategoryPacing).Debug(format, args...) }

func Sequencer(format string, args ...interface{})      { Get(CategorySequencer).Info(format, args...) }
func SequencerDebug(format string, args ...interface{}) { Get(CategorySequencer).Debug(format, args...) }
func SequencerWarn(format string, args ...interface{})  { Get(CategorySequencer).Warn(format, args...) }
func SequencerError(format string, args ...interface{}) { Get(CategorySequencer).Error(format, args...) }

func Browser(format string, args ...interface{})      { Get(CategoryBrowser).Info(format, args...) }
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }
func BrowserWarn(format string, args ...interface{})  { Get(CategoryBrowser).Warn(format, args...) }

func Metrics(format string, args ...interface{}) { Get(CategoryMetrics).Info(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
