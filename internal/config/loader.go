package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/metalblueberry/bard/pkg/pitch"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TUNER_"

// Load reads the YAML configuration file at path, applies environment
// overrides and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
			return nil, err
		}
		return cfg, Validate(cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r on top of the defaults, applies
// overrides from lookup and validates the result.
func LoadFromReader(r io.Reader, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields of cfg from TUNER_* variables found by lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}

	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *float64) {
		if v, ok := lookup(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	level := string(cfg.LogLevel)
	str("LOG_LEVEL", &level)
	cfg.LogLevel = LogLevel(level)

	str("DEVICE", &cfg.Audio.Device)
	num("SAMPLE_RATE", &cfg.Audio.SampleRate)
	integer("FRAME_SIZE", &cfg.Audio.FrameSize)
	num("SILENCE_THRESHOLD", &cfg.Pitch.SilenceThreshold)
	num("SEARCH_RATIO", &cfg.Pitch.SearchRatio)
	num("MIN_FREQUENCY", &cfg.Pitch.MinFrequency)
	num("MAX_FREQUENCY", &cfg.Pitch.MaxFrequency)
	integer("WORKERS", &cfg.Pitch.Workers)
	num("REFERENCE", &cfg.Note.Reference)
	num("TICK_RATE", &cfg.Display.TickRate)
	str("METRICS_LISTEN", &cfg.Metrics.Listen)

	return errors.Join(errs...)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if n := cfg.Audio.FrameSize; n < 4 || n&(n-1) != 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be a power of two of at least 4", n))
	}

	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %v must not be negative", cfg.Audio.SampleRate))
	}

	pc := pitch.Config{
		SilenceThreshold: cfg.Pitch.SilenceThreshold,
		SearchRatio:      cfg.Pitch.SearchRatio,
		MinFrequency:     cfg.Pitch.MinFrequency,
		MaxFrequency:     cfg.Pitch.MaxFrequency,
		Workers:          cfg.Pitch.Workers,
	}
	if err := pc.Validate(); err != nil {
		errs = append(errs, err)
	}

	if r := cfg.Note.Reference; !(r > 0) || math.IsInf(r, 0) {
		errs = append(errs, fmt.Errorf("note.reference %v must be a positive frequency", r))
	}

	if !(cfg.Display.TickRate > 0) {
		errs = append(errs, fmt.Errorf("display.tick_rate %v must be positive", cfg.Display.TickRate))
	}

	if addr := cfg.Metrics.Listen; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen %q: %w", addr, err))
		}
	}

	return errors.Join(errs...)
}
