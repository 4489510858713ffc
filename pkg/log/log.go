// Copyright 2025 Photonpath Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides leveled logging on top of zap with key-value
// context, in the style used throughout the repository:
//
//	log.Info("reservation committed", "id", id, "globalId", globalID)
package log

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the process-wide logger.
type Config struct {
	Console ConsoleConfig
}

// ConsoleConfig configures the console output.
type ConsoleConfig struct {
	// Level of console logging (debug|info|error). Defaults to info.
	Level string
	// Format of the console output (human|json). Defaults to human.
	Format string
	// DisableCaller drops the caller annotation from entries.
	DisableCaller bool
}

// Logger describes the logger interface.
type Logger interface {
	New(ctx ...any) Logger
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Enabled(lvl Level) bool
}

// Level is the log level.
type Level = zapcore.Level

// The log levels.
const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	ErrorLevel = zapcore.ErrorLevel
)

type logger struct {
	logger *zap.SugaredLogger
}

func (l *logger) New(ctx ...any) Logger {
	return &logger{logger: l.logger.With(ctx...)}
}

func (l *logger) Debug(msg string, ctx ...any) { l.logger.Debugw(msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.logger.Infow(msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.logger.Errorw(msg, ctx...) }

func (l *logger) Enabled(lvl Level) bool {
	return l.logger.Desugar().Core().Enabled(lvl)
}

var root = &logger{logger: zap.NewNop().Sugar()}

// Setup initializes the process-wide root logger. It must be called before
// the first use of any logging function in this package; entries emitted
// earlier are discarded.
func Setup(cfg Config) error {
	lvl, err := parseLevel(cfg.Console.Level)
	if err != nil {
		return err
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	var enc zapcore.Encoder
	switch strings.ToLower(cfg.Console.Format) {
	case "", "human", "console":
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return fmt.Errorf("unsupported log format: %s", cfg.Console.Format)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	opts := []zap.Option{zap.AddCallerSkip(1)}
	if !cfg.Console.DisableCaller {
		opts = append(opts, zap.AddCaller())
	}
	root = &logger{logger: zap.New(core, opts...).Sugar()}
	return nil
}

func parseLevel(lvl string) (zapcore.Level, error) {
	switch strings.ToLower(lvl) {
	case "":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unsupported log level: %s", lvl)
	}
}

// Root returns the root logger. It is never nil.
func Root() Logger {
	return root
}

// New creates a logger with the given context attached.
func New(ctx ...any) Logger {
	return root.New(ctx...)
}

// Debug logs at debug level on the root logger.
func Debug(msg string, ctx ...any) { root.Debug(msg, ctx...) }

// Info logs at info level on the root logger.
func Info(msg string, ctx ...any) { root.Info(msg, ctx...) }

// Error logs at error level on the root logger.
func Error(msg string, ctx ...any) { root.Error(msg, ctx...) }

// Discard silences the root logger. Useful in tests.
func Discard() {
	root = &logger{logger: zap.NewNop().Sugar()}
}

// Flush writes out buffered log entries.
func Flush() {
	_ = root.logger.Sync()
}

// HandlePanic logs and re-raises panics. Defer it at the start of every
// goroutine so panics are visible in the log before the process dies.
func HandlePanic() {
	if msg := recover(); msg != nil {
		root.Error("Panic", "msg", msg, "stack", string(debug.Stack()))
		Flush()
		panic(msg)
	}
}
