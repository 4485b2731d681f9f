package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		level, format string
		wantLevel     zapcore.Level
		wantEncoding  string
	}{
		{"debug", "json", zapcore.DebugLevel, "json"},
		{"warn", "console", zapcore.WarnLevel, "console"},
		{"loud", "", zapcore.InfoLevel, "json"},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			cfg := newConfig(tt.level, tt.format)
			assert.Equal(t, tt.wantLevel, cfg.Level.Level())
			assert.Equal(t, tt.wantEncoding, cfg.Encoding)
		})
	}
}

func TestNew_BuildsBothFormats(t *testing.T) {
	assert.True(t, New("info", "json").Core().Enabled(zapcore.InfoLevel))
	assert.False(t, New("error", "console").Core().Enabled(zapcore.InfoLevel))
}
