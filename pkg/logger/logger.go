// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package logger builds the zap logger shared by the command line tools.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, encoding and an optional rotated log file.
type Config struct {
	Level    string `env:"LOG_LEVEL" yaml:"level"`
	Encoding string `env:"LOG_ENCODING" yaml:"encoding"`
	// File, when set, receives a copy of every entry. It is rotated by size.
	File       string `env:"LOG_FILE" yaml:"file"`
	MaxSize    int    `env:"LOG_MAX_SIZE" yaml:"max_size"`
	MaxAge     int    `env:"LOG_MAX_AGE" yaml:"max_age"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" yaml:"max_backups"`
	Compress   bool   `env:"LOG_COMPRESS" yaml:"compress"`
}

// ParseLevel maps debug, info, warn and error to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level

	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return l, nil
}

// New builds a logger writing to stderr and, if configured, to a rotated file.
func New(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder

	switch cfg.Encoding {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log encoding %q", cfg.Encoding)
	}

	sink := zapcore.Lock(os.Stderr)

	if cfg.File != "" {
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}))
	}

	return zap.New(zapcore.NewCore(enc, sink, level), zap.AddCaller()), nil
}
