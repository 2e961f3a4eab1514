package tuner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/metalblueberry/bard/internal/observe"
	"github.com/metalblueberry/bard/internal/testutil"
	"github.com/metalblueberry/bard/pkg/note"
	"github.com/metalblueberry/bard/pkg/pitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

/*
 * Source replaying a list of frames, then failing with err.
 */
type scriptedSource struct {
	frames [][]float64
	rate   int
	err    error
	calls  atomic.Int32
}

func (s *scriptedSource) callsSoFar() int {
	return int(s.calls.Load())
}

func (s *scriptedSource) Frame(dst []float64) (int, error) {
	s.calls.Add(1)
	if len(s.frames) == 0 {
		return 0, s.err
	}
	copy(dst, s.frames[0])
	s.frames = s.frames[1:]
	return s.rate, nil
}

type recorder struct {
	readings []Reading
}

func (r *recorder) Show(reading Reading) {
	reading.Samples = append([]float64(nil), reading.Samples...)
	r.readings = append(r.readings, reading)
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func frameCounts(t *testing.T, reader *sdkmetric.ManualReader) map[bool]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[bool]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "tuner.frames" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("voiced"))
				counts[v.AsBool()] = dp.Value
			}
		}
	}
	return counts
}

func sourceErrors(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "tuner.source.errors" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestCreateUsesSharedDefaultEstimator(t *testing.T) {
	tn := Create(&scriptedSource{}, nil)
	assert.Same(t, pitch.Default(), tn.estimator)
	assert.Equal(t, pitch.DefaultConfig(), tn.estimator.Config())

	est, err := pitch.New(pitch.WithWorkers(2))
	require.NoError(t, err)
	tn = Create(&scriptedSource{}, nil, WithEstimator(est), WithEstimator(nil))
	assert.Same(t, est, tn.estimator)
}

func TestTick(t *testing.T) {
	src := &scriptedSource{
		rate: 44100,
		frames: [][]float64{
			testutil.PeriodicSine(100, 0.8, 2048),
			make([]float64, 2048),
		},
		err: io.EOF,
	}
	rec := &recorder{}
	metrics, reader := newTestMetrics(t)
	tn := Create(src, rec, WithMetrics(metrics))
	ctx := context.Background()

	r, err := tn.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, r.Voiced())
	assert.Equal(t, 441.0, r.Frequency())
	assert.Equal(t, "A4", r.Note.String())
	assert.Equal(t, 4, r.Note.Cents)
	assert.Equal(t, 44100, r.SampleRate)
	assert.Len(t, r.Samples, DEFAULT_FRAME_SIZE)

	r, err = tn.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, r.Voiced())
	assert.Equal(t, note.None, r.Note)

	_, err = tn.Tick(ctx)
	assert.ErrorIs(t, err, io.EOF)

	require.Len(t, rec.readings, 2)
	assert.Equal(t, "A4", rec.readings[0].Note.String())
	assert.False(t, rec.readings[1].Voiced())
	assert.Equal(t, map[bool]int64{true: 1, false: 1}, frameCounts(t, reader))
}

func TestTickWithCustomComponents(t *testing.T) {
	est, err := pitch.New(pitch.WithFrequencyRange(100, 1000), pitch.WithWorkers(3))
	require.NoError(t, err)

	src := &scriptedSource{rate: 8000, frames: [][]float64{testutil.PeriodicSine(20, 0.5, 512)}}
	tn := Create(src, nil,
		WithEstimator(est),
		WithMapper(note.NewMapper(note.WithReference(400))),
		WithFrameSize(512),
	)
	assert.Equal(t, 512, tn.FrameSize())

	r, err := tn.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 400.0, r.Frequency())
	assert.Equal(t, "A4", r.Note.String())
	assert.Zero(t, r.Note.Cents)
}

func TestTickPreconditionViolation(t *testing.T) {
	src := &scriptedSource{rate: 0, frames: [][]float64{testutil.PeriodicSine(20, 0.5, 64)}}
	rec := &recorder{}
	tn := Create(src, rec, WithFrameSize(64))

	_, err := tn.Tick(context.Background())
	assert.ErrorIs(t, err, pitch.ErrInvalidSampleRate)
	assert.True(t, pitch.IsPrecondition(err))
	assert.Empty(t, rec.readings)

	src = &scriptedSource{rate: 44100, frames: [][]float64{{0.5, -0.5, 0.5}}}
	tn = Create(src, rec, WithFrameSize(3))
	_, err = tn.Tick(context.Background())
	assert.ErrorIs(t, err, pitch.ErrFrameTooShort)
}

func TestRunStopsAtEndOfInput(t *testing.T) {
	src := &scriptedSource{
		rate:   44100,
		frames: [][]float64{testutil.PeriodicSine(100, 0.8, 2048), testutil.PeriodicSine(200, 0.8, 2048)},
		err:    io.EOF,
	}
	rec := &recorder{}
	tn := Create(src, rec, WithTickRate(1000))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, tn.Run(ctx))
	require.Len(t, rec.readings, 2)
	assert.Equal(t, 441.0, rec.readings[0].Frequency())
	assert.Equal(t, 220.5, rec.readings[1].Frequency())
	assert.Equal(t, "A3", rec.readings[1].Note.String())
	assert.Equal(t, 4, rec.readings[1].Note.Cents)
}

func TestRunLogsSourceErrorsAndStopsOnCancel(t *testing.T) {
	src := &scriptedSource{rate: 44100, err: errors.New("buffer underrun")}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tn := Create(src, nil, WithTickRate(1000), WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tn.Run(ctx) }()

	require.Eventually(t, func() bool { return src.callsSoFar() >= 1 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Contains(t, logs.String(), "buffer underrun")
}

func TestRunSkipsSourceNotReady(t *testing.T) {
	src := &scriptedSource{rate: 44100, err: fmt.Errorf("capture: %w", ErrNotReady)}
	rec := &recorder{}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	metrics, reader := newTestMetrics(t)
	tn := Create(src, rec, WithTickRate(1000), WithLogger(logger), WithMetrics(metrics))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tn.Run(ctx) }()

	require.Eventually(t, func() bool { return src.callsSoFar() >= 3 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.NotContains(t, logs.String(), "tick failed")
	assert.Zero(t, sourceErrors(t, reader))
	assert.Empty(t, rec.readings)
}

func TestTickCountsSourceErrors(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	tn := Create(&scriptedSource{rate: 44100, err: errors.New("device lost")}, nil, WithMetrics(metrics))

	_, err := tn.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(1), sourceErrors(t, reader))

	tn = Create(&scriptedSource{rate: 44100, err: ErrNotReady}, nil, WithMetrics(metrics))
	_, err = tn.Tick(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, int64(1), sourceErrors(t, reader))
}

func TestRunReturnsPreconditionViolation(t *testing.T) {
	src := &scriptedSource{rate: -1, frames: [][]float64{make([]float64, 2048)}}
	tn := Create(src, nil, WithTickRate(1000))

	err := tn.Run(context.Background())
	assert.ErrorIs(t, err, pitch.ErrInvalidSampleRate)
}

func TestDisplayFunc(t *testing.T) {
	var got Reading
	DisplayFunc(func(r Reading) { got = r }).Show(Reading{SampleRate: 7})
	assert.Equal(t, 7, got.SampleRate)
}
