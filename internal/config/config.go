// Package config loads tuner settings from YAML with environment overrides.
package config

import (
	"io"
	"log/slog"
	"strings"

	"github.com/metalblueberry/bard/pkg/note"
	"github.com/metalblueberry/bard/pkg/pitch"
	"github.com/metalblueberry/bard/pkg/tuner"
)

// LogLevel is a slog level name.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l names a known level.
func (l LogLevel) IsValid() bool {
	switch LogLevel(strings.ToLower(string(l))) {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a slog level. Unknown names map to info.
func (l LogLevel) Level() slog.Level {
	switch LogLevel(strings.ToLower(string(l))) {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the top-level configuration file.
type Config struct {
	LogLevel LogLevel      `yaml:"log_level"`
	Audio    AudioConfig   `yaml:"audio"`
	Pitch    PitchConfig   `yaml:"pitch"`
	Note     NoteConfig    `yaml:"note"`
	Display  DisplayConfig `yaml:"display"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// AudioConfig selects the capture device.
type AudioConfig struct {
	Device     string  `yaml:"device"`
	SampleRate float64 `yaml:"sample_rate"`
	FrameSize  int     `yaml:"frame_size"`
	LowLatency bool    `yaml:"low_latency"`
}

// PitchConfig mirrors pitch.Config.
type PitchConfig struct {
	SilenceThreshold float64 `yaml:"silence_threshold"`
	SearchRatio      float64 `yaml:"search_ratio"`
	MinFrequency     float64 `yaml:"min_frequency"`
	MaxFrequency     float64 `yaml:"max_frequency"`
	Workers          int     `yaml:"workers"`
}

// NoteConfig sets the concert pitch.
type NoteConfig struct {
	Reference float64 `yaml:"reference"`
}

// DisplayConfig sets the refresh cadence.
type DisplayConfig struct {
	TickRate float64 `yaml:"tick_rate"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the host:port serving /metrics. Empty disables metrics.
	Listen string `yaml:"listen"`
}

// Default returns the settings of the classic tuner.
func Default() *Config {
	p := pitch.DefaultConfig()
	return &Config{
		LogLevel: LogInfo,
		Audio: AudioConfig{
			FrameSize: tuner.DEFAULT_FRAME_SIZE,
		},
		Pitch: PitchConfig{
			SilenceThreshold: p.SilenceThreshold,
			SearchRatio:      p.SearchRatio,
			Workers:          p.Workers,
		},
		Note:    NoteConfig{Reference: note.A4_FREQUENCY},
		Display: DisplayConfig{TickRate: tuner.DEFAULT_TICK_RATE},
	}
}

// PitchOptions returns the estimator options described by c.
func (c *Config) PitchOptions() []pitch.Option {
	return []pitch.Option{
		pitch.WithSilenceThreshold(c.Pitch.SilenceThreshold),
		pitch.WithSearchRatio(c.Pitch.SearchRatio),
		pitch.WithFrequencyRange(c.Pitch.MinFrequency, c.Pitch.MaxFrequency),
		pitch.WithWorkers(c.Pitch.Workers),
	}
}

// Estimator builds the pitch estimator described by c.
func (c *Config) Estimator() (*pitch.Estimator, error) {
	return pitch.New(c.PitchOptions()...)
}

// Mapper builds the note mapper described by c.
func (c *Config) Mapper() note.Mapper {
	return note.NewMapper(note.WithReference(c.Note.Reference))
}

// TunerOptions returns the tuner options described by c, excluding the
// estimator.
func (c *Config) TunerOptions() []tuner.Option {
	return []tuner.Option{
		tuner.WithMapper(c.Mapper()),
		tuner.WithFrameSize(c.Audio.FrameSize),
		tuner.WithTickRate(c.Display.TickRate),
	}
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel.Level()}))
}
