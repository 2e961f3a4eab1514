package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"github.com/metalblueberry/bard/internal/config"
	"github.com/metalblueberry/bard/internal/observe"
	"github.com/metalblueberry/bard/pkg/capture"
	"github.com/metalblueberry/bard/pkg/display"
	"github.com/metalblueberry/bard/pkg/tuner"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "", "YAML configuration file")
	wavPath    = flag.String("wav", "", "analyse a WAV file instead of the microphone")
	hop        = flag.Int("hop", 0, "samples to advance between WAV frames (default: frame size)")
	loop       = flag.Bool("loop", false, "restart the WAV file at its end")
	raw        = flag.Bool("raw", false, "read unsigned 8-bit mono PCM from stdin")
	rawRate    = flag.Int("rate", 44100, "sample rate of -raw input")
	sine       = flag.Float64("sine", 0, "analyse a synthetic sine of this frequency")
	device     = flag.String("device", "", "input device name, overrides the configuration")
)

func main() {
	flag.Parse()

	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *device != "" {
		cfg.Audio.Device = *device
	}

	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.ErrorContext(ctx, "tuner stopped", slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	source, closer, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer closer()

	estimator, err := cfg.Estimator()
	if err != nil {
		return err
	}

	console := display.NewConsole(os.Stdout)
	defer console.Finish()

	opts := append(cfg.TunerOptions(), tuner.WithEstimator(estimator), tuner.WithLogger(logger))

	if cfg.Metrics.Listen == "" {
		tn := tuner.Create(source, console, opts...)
		logger.InfoContext(ctx, "tuner running", slog.Int("frame_size", tn.FrameSize()))
		return tn.Run(ctx)
	}

	provider, err := observe.InitProvider(observe.ProviderConfig{ServiceName: "tuner"})
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("metrics shutdown", slog.Any("error", err))
		}
	}()

	ln, err := net.Listen("tcp", cfg.Metrics.Listen)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}

	opts = append(opts, tuner.WithMetrics(provider.Metrics()))
	tn := tuner.Create(source, console, opts...)

	// The endpoint lives as long as the tuner: the end of a WAV file stops both.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		logger.InfoContext(gctx, "tuner running", slog.Int("frame_size", tn.FrameSize()))
		return tn.Run(gctx)
	})
	g.Go(func() error {
		logger.InfoContext(gctx, "serving metrics", slog.String("addr", ln.Addr().String()))
		return observe.Serve(gctx, ln, provider.Handler())
	})

	return g.Wait()
}

func openSource(cfg *config.Config, logger *slog.Logger) (tuner.Source, func(), error) {
	switch {
	case *wavPath != "":
		step := *hop
		if step <= 0 {
			step = cfg.Audio.FrameSize
		}
		w, err := capture.OpenWAV(*wavPath, step)
		if err != nil {
			return nil, nil, err
		}
		w.SetLoop(*loop)
		logger.Info("reading wav", slog.String("path", *wavPath), slog.Int("samples", w.Len()))
		return w, func() {}, nil

	case *raw:
		if *rawRate <= 0 {
			return nil, nil, errors.New("-rate must be positive")
		}
		return capture.NewU8Reader(os.Stdin, *rawRate), func() {}, nil

	case *sine > 0:
		return capture.NewSine(*sine, 0.5, int(cfg.Audio.SampleRate)), func() {}, nil
	}

	mic, err := capture.OpenMicrophone(capture.MicrophoneConfig{
		Device:     cfg.Audio.Device,
		SampleRate: cfg.Audio.SampleRate,
		FrameSize:  cfg.Audio.FrameSize,
		LowLatency: cfg.Audio.LowLatency,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := mic.Start(); err != nil {
		_ = mic.Close()
		return nil, nil, err
	}
	logger.Info("capturing", slog.String("device", mic.DeviceName()), slog.Int("sample_rate", mic.SampleRate()))

	return mic, func() {
		if err := mic.Close(); err != nil {
			logger.Warn("close microphone", slog.Any("error", err))
		}
	}, nil
}
