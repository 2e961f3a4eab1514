package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/metalblueberry/bard/pkg/pitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoadFromReader(t *testing.T) {
	const doc = `
log_level: debug
audio:
  device: Jabra
  frame_size: 4096
pitch:
  min_frequency: 60
  max_frequency: 1200
  workers: 4
note:
  reference: 442
display:
  tick_rate: 30
metrics:
  listen: 127.0.0.1:9464
`
	cfg, err := LoadFromReader(strings.NewReader(doc), nil)
	require.NoError(t, err)

	assert.Equal(t, LogDebug, cfg.LogLevel)
	assert.Equal(t, "Jabra", cfg.Audio.Device)
	assert.Equal(t, 4096, cfg.Audio.FrameSize)
	assert.Equal(t, 60.0, cfg.Pitch.MinFrequency)
	assert.Equal(t, 1200.0, cfg.Pitch.MaxFrequency)
	assert.Equal(t, 4, cfg.Pitch.Workers)
	assert.Equal(t, 442.0, cfg.Note.Reference)
	assert.Equal(t, 30.0, cfg.Display.TickRate)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Listen)

	// Untouched fields keep their defaults.
	assert.Equal(t, pitch.DEFAULT_SILENCE_THRESHOLD, cfg.Pitch.SilenceThreshold)
	assert.Equal(t, pitch.DEFAULT_SEARCH_RATIO, cfg.Pitch.SearchRatio)
}

func TestLoadFromReaderEmptyDocument(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("pitch:\n  treshold: 0.2\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "treshold")
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("audio:\n  device: Jabra\n"), env(map[string]string{
		"TUNER_DEVICE":            "USB",
		"TUNER_FRAME_SIZE":        " 1024 ",
		"TUNER_SILENCE_THRESHOLD": "0.02",
		"TUNER_REFERENCE":         "432",
		"TUNER_LOG_LEVEL":         "WARN",
		"TUNER_METRICS_LISTEN":    ":9464",
	}))
	require.NoError(t, err)

	assert.Equal(t, "USB", cfg.Audio.Device)
	assert.Equal(t, 1024, cfg.Audio.FrameSize)
	assert.Equal(t, 0.02, cfg.Pitch.SilenceThreshold)
	assert.Equal(t, 432.0, cfg.Note.Reference)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel.Level())
	assert.Equal(t, ":9464", cfg.Metrics.Listen)
}

func TestEnvOverridesReportParseErrors(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(cfg, env(map[string]string{
		"TUNER_WORKERS":   "many",
		"TUNER_TICK_RATE": "fast",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TUNER_WORKERS")
	assert.Contains(t, err.Error(), "TUNER_TICK_RATE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "log level", mutate: func(c *Config) { c.LogLevel = "verbose" }, want: "log_level"},
		{name: "frame size not power of two", mutate: func(c *Config) { c.Audio.FrameSize = 1000 }, want: "audio.frame_size"},
		{name: "frame size too small", mutate: func(c *Config) { c.Audio.FrameSize = 2 }, want: "audio.frame_size"},
		{name: "negative sample rate", mutate: func(c *Config) { c.Audio.SampleRate = -1 }, want: "audio.sample_rate"},
		{name: "search ratio", mutate: func(c *Config) { c.Pitch.SearchRatio = 0.9 }, want: "search ratio"},
		{name: "reference", mutate: func(c *Config) { c.Note.Reference = 0 }, want: "note.reference"},
		{name: "tick rate", mutate: func(c *Config) { c.Display.TickRate = 0 }, want: "display.tick_rate"},
		{name: "metrics listen without port", mutate: func(c *Config) { c.Metrics.Listen = "localhost" }, want: "metrics.listen"},
	}

	require.NoError(t, Validate(Default()))
	assert.Empty(t, Default().Metrics.Listen)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Audio.FrameSize = 3
	cfg.Display.TickRate = -1
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audio.frame_size")
	assert.Contains(t, err.Error(), "display.tick_rate")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pitch:\n  workers: 2\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pitch.Workers)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildComponents(t *testing.T) {
	cfg := Default()
	cfg.Pitch.Workers = 3
	cfg.Note.Reference = 415

	est, err := cfg.Estimator()
	require.NoError(t, err)
	assert.Equal(t, 3, est.Config().Workers)
	assert.Equal(t, 415.0, cfg.Mapper().Reference())
	assert.Len(t, cfg.TunerOptions(), 3)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	logger := cfg.Logger(&buf)

	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
