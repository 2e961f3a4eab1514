package pitch

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

/*
 * Data structure representing the outcome of a pitch estimation.
 *
 * A zero Estimate means "no pitch": either the frame was below the silence
 * gate or no lag correlated positively.
 */
type Estimate struct {
	Voiced      bool
	Frequency   float64
	Lag         int
	Correlation float64
	RMS         float64
}

/*
 * Data structure representing a time-domain autocorrelation pitch estimator.
 *
 * An Estimator holds only immutable configuration and may be shared between
 * goroutines.
 */
type Estimator struct {
	cfg Config
}

/*
 * Creates a pitch estimator.
 */
func New(opts ...Option) (*Estimator, error) {
	cfg := ApplyOptions(opts...)
	err := cfg.Validate()

	if err != nil {
		return nil, err
	}

	e := Estimator{
		cfg: cfg,
	}

	return &e, nil
}

var defaultEstimator = &Estimator{cfg: DefaultConfig()}

/*
 * Returns the shared estimator with the default configuration.
 */
func Default() *Estimator {
	return defaultEstimator
}

/*
 * Estimate the fundamental frequency of frame with the default
 * configuration.
 */
func Detect(frame []float64, sampleRate int) (Estimate, error) {
	return defaultEstimator.Estimate(frame, sampleRate)
}

/*
 * Returns the parameters the estimator was built with.
 */
func (this *Estimator) Config() Config {
	return this.cfg
}

/*
 * Estimate the fundamental frequency of a frame of samples in [-1, 1].
 *
 * Frames whose RMS is below the silence threshold, and frames for which no
 * lag correlates positively, yield an unvoiced Estimate and a nil error.
 * Errors are only returned for frames shorter than four samples and for
 * non-positive sample rates.
 */
func (this *Estimator) Estimate(frame []float64, sampleRate int) (Estimate, error) {
	n := len(frame)

	if n < 4 {
		return Estimate{}, ErrFrameTooShort
	}

	if sampleRate <= 0 {
		return Estimate{}, ErrInvalidSampleRate
	}

	scratch := make([]float64, n)
	rms := RMS(frame, scratch)

	if rms < this.cfg.SilenceThreshold {
		return Estimate{RMS: rms}, nil
	}

	window := int(float64(n) * this.cfg.SearchRatio)
	lo, hi := this.lagRange(window, sampleRate)
	best := this.search(frame, window, lo, hi)

	/*
	 * No lag ever beat the initial score of zero.
	 */
	if best.lag == 0 {
		return Estimate{RMS: rms}, nil
	}

	result := Estimate{
		Voiced:      true,
		Frequency:   float64(sampleRate) / float64(best.lag),
		Lag:         best.lag,
		Correlation: best.score,
		RMS:         rms,
	}

	return result, nil
}

/*
 * Returns the inclusive range of candidate lags. An empty range is signalled
 * by lo > hi.
 */
func (this *Estimator) lagRange(window int, sampleRate int) (int, int) {
	lo := 1
	hi := window - 1
	rate := float64(sampleRate)

	if this.cfg.MaxFrequency > 0 {
		minLag := int(math.Ceil(rate / this.cfg.MaxFrequency))

		if minLag > lo {
			lo = minLag
		}

	}

	if this.cfg.MinFrequency > 0 {
		maxLag := math.Floor(rate / this.cfg.MinFrequency)

		if maxLag < float64(hi) {
			hi = int(maxLag)
		}

	}

	return lo, hi
}

/*
 * RMS returns the root-mean-square amplitude of signal. scratch must be at
 * least as long as signal; it is overwritten with the squared samples.
 */
func RMS(signal []float64, scratch []float64) float64 {
	n := len(signal)

	if n == 0 {
		return 0
	}

	squares := scratch[:n]
	vecmath.MulBlock(squares, signal, signal)
	sum := 0.0

	for _, sq := range squares {
		sum += sq
	}

	return math.Sqrt(sum / float64(n))
}
