// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/annonymususer90/my99exch/api/schemas"
	"github.com/annonymususer90/my99exch/internal/config"
)

func TestInitialize(t *testing.T) {
	t.Run("should colorize console levels", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "my99exch",
			Colors:      config.ColorConfig{Info: "green"},
		}, zapcore.AddSync(&buf))
		GetLogger().Named("gate").Info("Admitted.")

		out := buf.String()
		assert.Contains(t, out, colorMap["green"]+"INFO"+colorReset)
		assert.Contains(t, out, "my99exch.gate.")
		assert.Contains(t, out, "Admitted.")
	})

	t.Run("should write JSON with the service name", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "svc"}, zapcore.AddSync(&buf))
		GetLogger().Debug("hidden")
		GetLogger().Warn("Deposit rejected.", zap.String("site", "https://panel.example"))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "svc", entry["logger"])
		assert.Equal(t, "https://panel.example", entry["site"])
	})

	t.Run("should also write a rotated file", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		path := filepath.Join(t.TempDir(), "my99exch.log")

		Initialize(config.LoggerConfig{Level: "info", Format: "console", LogFile: path, MaxSize: 1}, zapcore.AddSync(&bytes.Buffer{}))
		GetLogger().Info("to file")
		Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"to file"`)
	})

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		defer ResetForTest()
		var first, second bytes.Buffer

		Initialize(config.LoggerConfig{Format: "json"}, zapcore.AddSync(&first))
		Initialize(config.LoggerConfig{Format: "json"}, zapcore.AddSync(&second))
		GetLogger().Info("once")

		assert.NotEmpty(t, first.String())
		assert.Empty(t, second.String())
	})
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, GetLogger())
}

func TestRequestFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	zap.New(core).Info("[req]", RequestFields(schemas.Request{
		Site:      "https://panel.example",
		Operation: schemas.OpDeposit,
		Account:   "alice",
		Amount:    "50",
	})...)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "alice", ctx["account"])
	assert.Equal(t, "50", ctx["amount"])
	assert.NotContains(t, ctx, "origin")
}
