package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskingHandlerHidesCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("debug", &buf)

	logger.Info("login", slog.String("num", "9876543210"), slog.String("pass", "hunter22"), slog.String("Token", "abc.def.ghi"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "9876543210", line["num"])
	assert.Equal(t, masked, line["pass"])
	assert.Equal(t, masked, line["Token"])
}

func TestMaskingHandlerCoversWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf).With(slog.String("authorization", "Bearer x"))

	logger.Info("request", slog.Group("http", slog.String("secret", "s"), slog.Int("status", 200)))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, masked, line["authorization"])

	group, ok := line["http"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, masked, group["secret"])
	assert.EqualValues(t, 200, group["status"])
}

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("loud", &buf)

	logger.Debug("hidden")
	assert.Zero(t, buf.Len())

	logger.Info("shown")
	assert.NotZero(t, buf.Len())
}
