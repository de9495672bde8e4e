package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLevelFromString(t *testing.T) {
	defer SetLevelFromString("info")

	SetLevelFromString("debug")
	assert.True(t, IsDebugEnabled())

	SetLevelFromString("WARNING")
	assert.False(t, IsDebugEnabled())
	assert.True(t, level.Enabled(zap.WarnLevel))
	assert.False(t, level.Enabled(zap.InfoLevel))

	SetLevelFromString("bogus")
	assert.True(t, level.Enabled(zap.InfoLevel))
}

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := SetLogger(zap.New(core))

	Info("hello", zap.String("k", "v"))
	Named("worker").Error("boom")

	restore()

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, "v", entries[0].ContextMap()["k"])
	assert.Equal(t, "worker", entries[1].LoggerName)
}
