// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the structured logger used across the
// bandwidth allocator. It is a thin wrapper around zap so call sites can
// depend on a small interface instead of a concrete logging library.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured, key-value logging interface used throughout
// pkg/allocator. Keys and values are passed as alternating pairs, mirroring
// the convention of the loggers this module is modeled on.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, err error, keysAndValues ...interface{})
	Errorw(msg string, err error, keysAndValues ...interface{})
	WithValues(keysAndValues ...interface{}) Logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func NewDevelopment() Logger {
	l, _ := zap.NewDevelopment()
	return &zapLogger{sugar: l.Sugar()}
}

func NewProduction() Logger {
	l, _ := zap.NewProduction()
	return &zapLogger{sugar: l.Sugar()}
}

// NewWithLevel builds a logger at the given zap level name ("debug", "info",
// "warn", "error"); an unrecognized level falls back to info.
func NewWithLevel(level string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return &zapLogger{sugar: l.Sugar()}
}

func (z *zapLogger) Debugw(msg string, keysAndValues ...interface{}) {
	z.sugar.Debugw(msg, keysAndValues...)
}

func (z *zapLogger) Infow(msg string, keysAndValues ...interface{}) {
	z.sugar.Infow(msg, keysAndValues...)
}

func (z *zapLogger) Warnw(msg string, err error, keysAndValues ...interface{}) {
	z.sugar.Warnw(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

func (z *zapLogger) Errorw(msg string, err error, keysAndValues ...interface{}) {
	z.sugar.Errorw(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

func (z *zapLogger) WithValues(keysAndValues ...interface{}) Logger {
	return &zapLogger{sugar: z.sugar.With(keysAndValues...)}
}

// Noop is a Logger that discards everything, useful as a safe default in
// tests and in constructors that are not given an explicit logger.
func Noop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}
