package pitch

import (
	"errors"
	"fmt"
	"math"
)

/*
 * Global constants.
 */
const (
	DEFAULT_SILENCE_THRESHOLD = 0.01
	DEFAULT_SEARCH_RATIO      = 0.5
)

/*
 * Tuning parameters of an estimator.
 *
 * MinFrequency and MaxFrequency restrict the candidate lags to the band
 * [SampleRate / MaxFrequency, SampleRate / MinFrequency]. A zero value
 * leaves the corresponding side of the search unrestricted.
 */
type Config struct {
	SilenceThreshold float64
	SearchRatio      float64
	MinFrequency     float64
	MaxFrequency     float64
	Workers          int
}

/*
 * Option mutates a Config.
 */
type Option func(*Config)

/*
 * DefaultConfig returns the parameters of the classic tuner: an RMS gate of
 * 0.01 and a search window of half a frame, scanned sequentially.
 */
func DefaultConfig() Config {
	return Config{
		SilenceThreshold: DEFAULT_SILENCE_THRESHOLD,
		SearchRatio:      DEFAULT_SEARCH_RATIO,
		Workers:          1,
	}
}

/*
 * WithSilenceThreshold sets the RMS level below which a frame is treated as
 * silence.
 */
func WithSilenceThreshold(threshold float64) Option {
	return func(cfg *Config) {
		cfg.SilenceThreshold = threshold
	}
}

/*
 * WithSearchRatio sets the fraction of the frame used as correlation window.
 * The window is also the exclusive upper bound on candidate lags, so the
 * ratio may not exceed one half.
 */
func WithSearchRatio(ratio float64) Option {
	return func(cfg *Config) {
		cfg.SearchRatio = ratio
	}
}

/*
 * WithFrequencyRange limits the lag search to periods of frequencies in
 * [minHz, maxHz].
 */
func WithFrequencyRange(minHz, maxHz float64) Option {
	return func(cfg *Config) {
		cfg.MinFrequency = minHz
		cfg.MaxFrequency = maxHz
	}
}

/*
 * WithWorkers splits the lag search across n goroutines.
 */
func WithWorkers(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.Workers = n
		}
	}
}

/*
 * ApplyOptions applies zero or more options to the default config.
 */
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}

/*
 * Validate reports every inconsistent parameter of cfg.
 */
func (cfg Config) Validate() error {
	var errs []error

	if math.IsNaN(cfg.SilenceThreshold) || cfg.SilenceThreshold < 0 {
		errs = append(errs, fmt.Errorf("%w: silence threshold %v", ErrInvalidConfig, cfg.SilenceThreshold))
	}

	if !(cfg.SearchRatio > 0 && cfg.SearchRatio <= 0.5) {
		errs = append(errs, fmt.Errorf("%w: search ratio %v not in (0, 0.5]", ErrInvalidConfig, cfg.SearchRatio))
	}

	if cfg.MinFrequency < 0 || cfg.MaxFrequency < 0 {
		errs = append(errs, fmt.Errorf("%w: negative frequency bound", ErrInvalidConfig))
	}

	if cfg.MinFrequency > 0 && cfg.MaxFrequency > 0 && cfg.MinFrequency > cfg.MaxFrequency {
		errs = append(errs, fmt.Errorf("%w: frequency range [%v, %v] is inverted", ErrInvalidConfig, cfg.MinFrequency, cfg.MaxFrequency))
	}

	if cfg.Workers < 1 {
		errs = append(errs, fmt.Errorf("%w: workers %d", ErrInvalidConfig, cfg.Workers))
	}

	return errors.Join(errs...)
}
