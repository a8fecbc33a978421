package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLevels(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   zerolog.Level
	}{
		{"default", Config{}, zerolog.InfoLevel},
		{"debug flag", Config{Debug: true, Level: "error"}, zerolog.DebugLevel},
		{"explicit", Config{Level: "warn"}, zerolog.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, Init(tt.config))
			assert.Equal(t, tt.want, GetLogger().GetLevel())
		})
	}
}

func TestInitRejectsBadConfig(t *testing.T) {
	assert.Error(t, Init(Config{Level: "chatty"}))
	assert.Error(t, Init(Config{Output: "syslog"}))
	assert.Error(t, Init(Config{Output: "file"}))
}

func TestInitFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.log")
	require.NoError(t, Init(Config{Output: "file", File: path, MaxSizeMB: 1}))
	Info().Msg("written")
}

func TestStructuredFields(t *testing.T) {
	require.NoError(t, Init(Config{}))
	var buf bytes.Buffer
	SetOutput(&buf)

	Info().Str("device", "AA:01").Int("attempt", 2).Msg("connect attempt")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "AA:01", entry["device"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "connect attempt", entry["message"])
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	require.NoError(t, Init(Config{Level: "info"}))
	var buf bytes.Buffer
	SetOutput(&buf)

	Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
}
