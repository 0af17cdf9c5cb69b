// Package logging builds the zap loggers used across tabula and adapts
// them to the progress sink imports report to.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// New builds a logger for level and format. "json" uses zap's
// production config, "console" its development config. Output goes to
// stderr so command output on stdout stays clean.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", types.ErrLogLevelUnknown, level)
	}

	var config zap.Config
	switch strings.ToLower(format) {
	case "", types.LogFormatConsole:
		config = zap.NewDevelopmentConfig()
		config.DisableStacktrace = true
	case types.LogFormatJSON:
		config = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrLogFormatUnknown, format)
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// FromConfig builds the logger cfg asks for.
func FromConfig(cfg types.Config) (*zap.Logger, error) {
	return New(cfg.LogLevel, cfg.LogFormat)
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger { return zap.NewNop() }

// Sync flushes logger, ignoring the errors stderr returns on some
// terminals.
func Sync(logger *zap.Logger) {
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil && !isIgnorableSyncError(err) {
		fmt.Fprintf(os.Stderr, "logger sync: %v\n", err)
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}

// ProgressLogger reports import progress through a logger. It logs at
// start, at each completed step of Every items, and at the end.
type ProgressLogger struct {
	Logger *zap.Logger
	// Every sets how many items pass between progress lines. Zero logs
	// every tenth of the total.
	Every int

	mu      sync.Mutex
	label   string
	total   int
	done    int
	lastLog int
}

var _ types.Progress = (*ProgressLogger)(nil)

// NewProgressLogger returns a ProgressLogger writing to logger.
func NewProgressLogger(logger *zap.Logger) *ProgressLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressLogger{Logger: logger}
}

func (p *ProgressLogger) Start(label string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label, p.total, p.done, p.lastLog = label, total, 0, 0
	p.Logger.Info("started", zap.String("task", label), zap.Int("total", total))
}

func (p *ProgressLogger) Advance(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
	step := p.Every
	if step <= 0 {
		step = max(p.total/10, 1)
	}
	if p.done-p.lastLog >= step {
		p.lastLog = p.done
		p.Logger.Debug("progress",
			zap.String("task", p.label),
			zap.Int("done", p.done),
			zap.Int("total", p.total),
		)
	}
}

func (p *ProgressLogger) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Logger.Info("finished", zap.String("task", p.label), zap.Int("done", p.done), zap.Int("total", p.total))
}

// Count reports how many items have been advanced.
func (p *ProgressLogger) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
