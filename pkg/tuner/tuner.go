package tuner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/metalblueberry/bard/internal/observe"
	"github.com/metalblueberry/bard/pkg/note"
	"github.com/metalblueberry/bard/pkg/pitch"
)

/*
 * Global constants.
 */
const (
	DEFAULT_FRAME_SIZE = 2048
	DEFAULT_TICK_RATE  = 60
)

/*
 * Returned by a Source that has not captured a full frame yet.
 */
var ErrNotReady = errors.New("tuner: source not ready")

/*
 * A Source delivers the most recent samples of a running capture.
 *
 * Frame overwrites dst with the newest len(dst) samples, normalized to
 * [-1, 1], and returns the sample rate they were captured at. A source
 * still filling its first frame reports ErrNotReady.
 */
type Source interface {
	Frame(dst []float64) (int, error)
}

/*
 * A Display consumes one Reading per tick.
 */
type Display interface {
	Show(r Reading)
}

/*
 * Adapts a function to the Display interface.
 */
type DisplayFunc func(Reading)

func (f DisplayFunc) Show(r Reading) {
	f(r)
}

/*
 * Data structure representing the outcome of one tick.
 *
 * Samples aliases the tuner's frame buffer and is only valid until the next
 * tick.
 */
type Reading struct {
	Estimate   pitch.Estimate
	Note       note.Note
	SampleRate int
	Samples    []float64
}

/*
 * Returns true if a pitch was detected.
 */
func (this Reading) Voiced() bool {
	return this.Estimate.Voiced
}

/*
 * Returns the detected frequency, or zero.
 */
func (this Reading) Frequency() float64 {
	return this.Estimate.Frequency
}

/*
 * Data structure representing an instrument tuner.
 *
 * A Tuner is driven by a single goroutine: either by Run or by an external
 * loop calling Tick once per display refresh.
 */
type Tuner struct {
	source    Source
	display   Display
	estimator *pitch.Estimator
	mapper    note.Mapper
	metrics   *observe.Metrics
	logger    *slog.Logger
	tickRate  float64
	frame     []float64
	last      string
}

type Option func(*Tuner)

/*
 * Replaces the default pitch estimator.
 */
func WithEstimator(e *pitch.Estimator) Option {
	return func(t *Tuner) {
		if e != nil {
			t.estimator = e
		}
	}
}

/*
 * Replaces the A4 = 440 Hz note mapper.
 */
func WithMapper(m note.Mapper) Option {
	return func(t *Tuner) {
		t.mapper = m
	}
}

/*
 * Records loop metrics into m instead of the global meter provider.
 */
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Tuner) {
		if m != nil {
			t.metrics = m
		}
	}
}

/*
 * Sets the logger for note changes and source errors.
 */
func WithLogger(l *slog.Logger) Option {
	return func(t *Tuner) {
		if l != nil {
			t.logger = l
		}
	}
}

/*
 * Sets the number of samples analysed per tick.
 */
func WithFrameSize(n int) Option {
	return func(t *Tuner) {
		if n > 0 {
			t.frame = make([]float64, n)
		}
	}
}

/*
 * Sets how many ticks per second Run performs.
 */
func WithTickRate(hz float64) Option {
	return func(t *Tuner) {
		if hz > 0 {
			t.tickRate = hz
		}
	}
}

/*
 * Creates an instrument tuner reading from source and reporting to display.
 */
func Create(source Source, display Display, opts ...Option) *Tuner {
	t := Tuner{
		source:    source,
		display:   display,
		estimator: pitch.Default(),
		mapper:    note.NewMapper(),
		metrics:   observe.DefaultMetrics(),
		logger:    slog.Default(),
		tickRate:  DEFAULT_TICK_RATE,
		frame:     make([]float64, DEFAULT_FRAME_SIZE),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&t)
		}
	}

	return &t
}

/*
 * Returns the number of samples analysed per tick.
 */
func (this *Tuner) FrameSize() int {
	return len(this.frame)
}

/*
 * Read one frame, estimate its pitch, map it to a note and show it.
 *
 * The Reading is shown and returned even when no pitch was detected. Errors
 * from the source or a precondition violation abort the tick before the
 * display is updated.
 */
func (this *Tuner) Tick(ctx context.Context) (Reading, error) {
	sampleRate, err := this.source.Frame(this.frame)

	if err != nil {

		if !errors.Is(err, ErrNotReady) {
			this.metrics.RecordSourceError(ctx)
		}

		return Reading{}, fmt.Errorf("tuner: read frame: %w", err)
	}

	start := time.Now()
	est, err := this.estimator.Estimate(this.frame, sampleRate)
	took := time.Since(start)

	if err != nil {
		return Reading{}, fmt.Errorf("tuner: estimate: %w", err)
	}

	this.metrics.RecordFrame(ctx, est.Voiced, took)
	n := note.None

	/*
	 * The mapper is only consulted when a pitch was found.
	 */
	if est.Voiced {
		n = this.mapper.Map(est.Frequency)
	}

	r := Reading{
		Estimate:   est,
		Note:       n,
		SampleRate: sampleRate,
		Samples:    this.frame,
	}

	if current := n.String(); current != this.last {
		this.logger.DebugContext(ctx, "note changed",
			slog.String("note", current),
			slog.Float64("frequency", est.Frequency),
			slog.Int("cents", n.Cents),
		)
		this.last = current
	}

	if this.display != nil {
		this.display.Show(r)
	}

	return r, nil
}

/*
 * Tick at the configured rate until ctx is cancelled.
 *
 * Source errors are logged and the loop continues with the next tick, a
 * source that is not ready yet is skipped silently. A source reporting
 * io.EOF ends the loop without error, precondition violations end it with
 * one.
 */
func (this *Tuner) Run(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / this.tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, err := this.Tick(ctx)

			if err == nil {
				continue
			}

			if errors.Is(err, io.EOF) {
				return nil
			}

			if pitch.IsPrecondition(err) {
				return err
			}

			this.logger.WarnContext(ctx, "tick failed", slog.Any("error", err))
		}

	}

}
