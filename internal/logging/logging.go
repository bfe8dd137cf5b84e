// Package logging builds the process logger: logr backed by zap.
package logging

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the output format and verbosity.
type Options struct {
	// Debug enables V(1) messages.
	Debug bool

	// Encoding is "json" (default) or "console".
	Encoding string

	// OutputPath is a zap sink path; empty means stderr.
	OutputPath string
}

// New returns a logger and a flush function to call before exit.
func New(opts Options) (logr.Logger, func(), error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Debug {
		// logr V(n) maps to zap level -n.
		level.SetLevel(zapcore.Level(-1))
	}

	encoding := opts.Encoding
	if encoding == "" {
		encoding = "json"
	}
	path := opts.OutputPath
	if path == "" {
		path = "stderr"
	}

	config := zap.Config{
		Level:             level,
		Development:       false,
		DisableCaller:     false,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "message",
			LevelKey:       "level",
			TimeKey:        "timestamp",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	}
	if encoding == "console" {
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	}

	log, err := config.Build()
	if err != nil {
		return logr.Logger{}, nil, fmt.Errorf("build zap logger: %w", err)
	}
	return zapr.NewLogger(log), func() { _ = log.Sync() }, nil
}

// MustNew is New for command entry points.
func MustNew(opts Options) (logr.Logger, func()) {
	log, flush, err := New(opts)
	if err != nil {
		panic(err)
	}
	return log, flush
}

// Redact masks all but the first and last character of s. Plugins use it when
// a login has to appear in a log line.
func Redact(s string) string {
	if len(s) <= 2 {
		return strings.Repeat("*", len(s))
	}
	return s[:1] + strings.Repeat("*", len(s)-2) + s[len(s)-1:]
}
