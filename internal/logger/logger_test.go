package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit_DefaultsToInfoLevelOnBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "not-a-level"
	cfg.FilePath = filepath.Join(t.TempDir(), "node.log")
	require.NoError(t, Init(cfg))
	assert.NotNil(t, Get())
}

func TestMonitorBridge_ForwardsEntriesToBroadcaster(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "node.log")
	require.NoError(t, Init(cfg))

	var gotLevel, gotMsg string
	var gotFields map[string]interface{}
	SetBroadcaster(func(level, msg string, fields map[string]interface{}) {
		gotLevel, gotMsg, gotFields = level, msg, fields
	})
	defer SetBroadcaster(nil)

	Info("node online", zap.String("alias", "333"))

	assert.Equal(t, "info", gotLevel)
	assert.Equal(t, "node online", gotMsg)
	assert.Equal(t, "333", gotFields["alias"])
}
