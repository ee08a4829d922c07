// Package logging builds the zap logger shared by the daemon, the CLI and the
// MCP server. File output is rotated by lumberjack.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type options struct {
	name    string
	path    string
	level   string
	console bool
}

// Option configures New.
type Option func(*options)

// Name sets the log file base name (without extension).
func Name(name string) Option {
	return func(o *options) { o.name = name }
}

// Path sets the directory log files are written to. An empty path disables
// file output.
func Path(dir string) Option {
	return func(o *options) { o.path = dir }
}

// Level sets the minimum level: debug, info, warn or error.
func Level(level string) Option {
	return func(o *options) { o.level = level }
}

// Console mirrors log output to stderr.
func Console(enabled bool) Option {
	return func(o *options) { o.console = enabled }
}

// New creates a sugared logger writing JSON lines to a rotated file and,
// optionally, human-readable lines to stderr.
func New(opts ...Option) (*zap.SugaredLogger, error) {
	o := options{name: "whisperflow", level: "info"}
	for _, opt := range opts {
		opt(&o)
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(o.level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", o.level, err)
	}
	enabler := zap.NewAtomicLevelAt(lvl)

	var cores []zapcore.Core
	if o.path != "" {
		if err := os.MkdirAll(o.path, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(o.path, o.name+".log"),
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(rotator),
			enabler,
		))
	}
	if o.console || len(cores) == 0 {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			enabler,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named(o.name)
	return logger.Sugar(), nil
}

// NewNop returns a logger that discards everything.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
