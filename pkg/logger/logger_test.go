// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		level   zapcore.Level
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}, level: zapcore.InfoLevel},
		{name: "debug console", cfg: Config{Level: "debug", Encoding: "console"}, level: zapcore.DebugLevel},
		{name: "warn json", cfg: Config{Level: "WARN", Encoding: "json"}, level: zapcore.WarnLevel},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
		{name: "bad encoding", cfg: Config{Encoding: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.level))
			assert.False(t, log.Core().Enabled(tt.level-1))
		})
	}
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscribe.log")

	log, err := New(Config{Level: "info", Encoding: "json", File: path, MaxSize: 1})
	require.NoError(t, err)

	log.Info("delivery received")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"delivery received"`)
}
