package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zerolog.Level
		wantErr bool
	}{
		{input: "", want: zerolog.InfoLevel},
		{input: "debug", want: zerolog.DebugLevel},
		{input: "INFO", want: zerolog.InfoLevel},
		{input: "warn", want: zerolog.WarnLevel},
		{input: "warning", want: zerolog.WarnLevel},
		{input: "error", want: zerolog.ErrorLevel},
		{input: "loud", want: zerolog.InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInit_File(t *testing.T) {
	prevLogger, prevLevel := zlog.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		zlog.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "deck.log")
	closer, err := Init(Config{Output: path, Level: "info"})
	require.NoError(t, err)

	zlog.Debug().Msg("hidden")
	zlog.Info().Msgf("playback: track changed: index=%d", 2)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "playback: track changed: index=2", entry["message"])
	assert.NotContains(t, entry, "caller")
}

func TestInit_Errors(t *testing.T) {
	_, err := Init(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = Init(Config{Output: filepath.Join(t.TempDir(), "missing", "deck.log")})
	assert.Error(t, err)
}

func TestShortCaller(t *testing.T) {
	file := filepath.Join("root", "internal", "playback", "controller.go")
	assert.Equal(t, filepath.Join("playback", "controller.go")+":42", shortCaller(0, file, 42))
	assert.Equal(t, "main.go:7", shortCaller(0, "main.go", 7))
}
