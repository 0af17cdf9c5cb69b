package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr error
		enabled zapcore.Level
	}{
		{"console debug", "debug", "console", nil, zapcore.DebugLevel},
		{"json info", "info", "json", nil, zapcore.InfoLevel},
		{"default format", "WARN", "", nil, zapcore.WarnLevel},
		{"bad level", "loud", "console", types.ErrLogLevelUnknown, 0},
		{"bad format", "info", "xml", types.ErrLogFormatUnknown, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.enabled-1))
		})
	}
}

func TestFromConfig(t *testing.T) {
	logger, err := FromConfig(types.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestProgressLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := NewProgressLogger(zap.New(core))
	p.Every = 2

	p.Start("import Items", 5)
	for range 5 {
		p.Advance(1)
	}
	p.Done()

	assert.Equal(t, 5, p.Count())
	assert.Equal(t, 1, logs.FilterMessage("started").Len())
	assert.Equal(t, 2, logs.FilterMessage("progress").Len())
	finished := logs.FilterMessage("finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, int64(5), finished[0].ContextMap()["done"])
}

func TestProgressLogger_NilLogger(t *testing.T) {
	p := NewProgressLogger(nil)
	assert.NotPanics(t, func() {
		p.Start("x", 0)
		p.Advance(3)
		p.Done()
	})
}
