package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithConfig(t *testing.T) {
	log, err := NewWithConfig(&Config{Level: "debug", Encoding: "json"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))
}

func TestNewWithConfigDefaults(t *testing.T) {
	log, err := NewWithConfig(&Config{})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.DebugLevel))
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
}

func TestNewWithConfigInvalidLevel(t *testing.T) {
	_, err := NewWithConfig(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWithConfigNil(t *testing.T) {
	_, err := NewWithConfig(nil)
	assert.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	log, err := NewProduction()
	require.NoError(t, err)

	ctx := WithLogger(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}

func TestFromContextFallsBackToNop(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
	assert.NotNil(t, FromContext(nil))
}
