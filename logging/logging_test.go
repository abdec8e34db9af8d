package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/intervu-ai/agentcore/config"
)

func TestNew(t *testing.T) {
	logger := New(config.LogConfig{Level: "debug", Format: "json"})
	assert.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger = New(config.LogConfig{Level: "error", Format: "console"})
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	// Unknown level defaults to info.
	logger = New(config.LogConfig{Level: "verbose"})
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
