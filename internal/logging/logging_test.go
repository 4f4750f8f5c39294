package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfoLevel(t *testing.T) {
	logger, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.Level)
}

func TestNewFallsBackOnInvalidLevel(t *testing.T) {
	logger, err := New(Options{Level: "not-a-level"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.Level)
}

func TestNewSelectsJSONFormatter(t *testing.T) {
	logger, err := New(Options{JSON: true})
	require.NoError(t, err)
	_, ok := logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestNewWithDebugLowersLevelAndWritesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)

	logger, err := New(Options{Level: "warn", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.Level)

	logger.WithField("component", "test").Debug("hello from debug hook")

	path := filepath.Join(dir, "fml", "debug.log")
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	require.NotEmpty(t, data)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "hello from debug hook", entry["msg"])
	assert.Equal(t, "test", entry["component"])
}

func TestDebugLogPathFallsBackToTempDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "")
	path, err := DebugLogPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.TempDir(), "fml", "debug.log"), path)
}
