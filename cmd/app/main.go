// Copyright 2016 Hajime Hoshi
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"github.com/metalblueberry/bard/internal/config"
	"github.com/metalblueberry/bard/internal/observe"
	"github.com/metalblueberry/bard/pkg/capture"
	"github.com/metalblueberry/bard/pkg/circular"
	"github.com/metalblueberry/bard/pkg/display"
	"github.com/metalblueberry/bard/pkg/pitch"
	"github.com/metalblueberry/bard/pkg/tuner"
)

const (
	screenWidth  = 640
	screenHeight = 480

	historySize = 240
	centsRange  = 50
)

var (
	configPath = flag.String("config", "", "YAML configuration file")
	sine       = flag.Float64("sine", 0, "show a synthetic sine of this frequency instead of the microphone")
)

type Game struct {
	ctx     context.Context
	tuner   *tuner.Tuner
	logger  *slog.Logger
	reading tuner.Reading
	history *circular.Buffer[float64]
	cents   []float64

	vertices []ebiten.Vertex
	indices  []uint16
}

/*
 * One tuner tick per game update, so the display refresh drives the
 * analysis.
 */
func (g *Game) Update() error {
	if err := g.ctx.Err(); err != nil {
		return ebiten.Termination
	}

	r, err := g.tuner.Tick(g.ctx)
	switch {
	case err == nil:
	case errors.Is(err, tuner.ErrNotReady):
		return nil
	case errors.Is(err, io.EOF):
		return ebiten.Termination
	case pitch.IsPrecondition(err):
		return err
	default:
		g.logger.Warn("tick failed", slog.Any("error", err))
		return nil
	}

	g.reading = r
	if r.Voiced() {
		g.history.Write(float64(r.Note.Cents))
	} else {
		g.history.Write(0)
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	ebitenutil.DebugPrint(screen, display.Format(g.reading).String())

	up := screen.SubImage(image.Rect(0, 0, screen.Bounds().Dx(), screen.Bounds().Dy()/2)).(*ebiten.Image)
	down := screen.SubImage(image.Rect(0, screen.Bounds().Dy()/2, screen.Bounds().Dx(), screen.Bounds().Dy())).(*ebiten.Image)
	g.drawWave(up, g.reading.Samples, 1)

	g.cents = g.cents[:0]
	for i := 0; i < g.history.Length(); i++ {
		c, _ := g.history.At(i)
		g.cents = append(g.cents, c)
	}
	g.drawWave(down, g.cents, centsRange)
}

var (
	whiteImage = ebiten.NewImage(3, 3)

	// whiteSubImage is an internal sub image of whiteImage.
	// Use whiteSubImage at DrawTriangles instead of whiteImage in order to avoid bleeding edges.
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
)

func init() {
	whiteImage.Fill(color.White)
}

func (g *Game) drawWave(screen *ebiten.Image, data []float64, size float64) {
	if len(data) == 0 {
		return
	}

	var path vector.Path
	mid := screen.Bounds().Min.Y + screen.Bounds().Dy()/2
	half := float64(screen.Bounds().Dy()) / 2
	width := screen.Bounds().Dx()

	path.MoveTo(0, float32(mid))

	scale := half / size
	for i := range data {
		y := float32(float64(mid) - data[i]*scale)
		path.LineTo(float32(i*width)/float32(len(data)), y)
	}

	op := &vector.StrokeOptions{}
	op.Width = float32(1)
	vs, is := path.AppendVerticesAndIndicesForStroke(g.vertices[:0], g.indices[:0], op)
	for i := range vs {
		vs[i].SrcX = 1
		vs[i].SrcY = 1
		vs[i].ColorR = 1
		vs[i].ColorG = 1
		vs[i].ColorB = 1
		vs[i].ColorA = 1
	}
	screen.DrawTriangles(vs, is, whiteSubImage, &ebiten.DrawTrianglesOptions{
		AntiAlias: false,
	})
	g.vertices, g.indices = vs, is
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("app stopped", slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var source tuner.Source

	if *sine > 0 {
		source = capture.NewSine(*sine, 0.5, int(cfg.Audio.SampleRate))
	} else {
		mic, err := capture.OpenMicrophone(capture.MicrophoneConfig{
			Device:     cfg.Audio.Device,
			SampleRate: cfg.Audio.SampleRate,
			FrameSize:  cfg.Audio.FrameSize,
			LowLatency: cfg.Audio.LowLatency,
		})
		if err != nil {
			return err
		}
		defer mic.Close()

		if err := mic.Start(); err != nil {
			return err
		}
		logger.Info("capturing", slog.String("device", mic.DeviceName()), slog.Int("sample_rate", mic.SampleRate()))
		source = mic
	}

	estimator, err := cfg.Estimator()
	if err != nil {
		return err
	}

	opts := append(cfg.TunerOptions(), tuner.WithEstimator(estimator), tuner.WithLogger(logger))

	if cfg.Metrics.Listen != "" {
		provider, err := observe.InitProvider(observe.ProviderConfig{ServiceName: "tuner-app"})
		if err != nil {
			return err
		}
		defer provider.Shutdown(context.Background())

		ln, err := net.Listen("tcp", cfg.Metrics.Listen)
		if err != nil {
			return fmt.Errorf("metrics listen: %w", err)
		}

		serveCtx, stopServe := context.WithCancel(ctx)
		defer stopServe()

		go func() {
			if err := observe.Serve(serveCtx, ln, provider.Handler()); err != nil {
				logger.Warn("metrics endpoint stopped", slog.Any("error", err))
			}
		}()
		opts = append(opts, tuner.WithMetrics(provider.Metrics()))
	}

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Tuner")
	ebiten.SetTPS(int(cfg.Display.TickRate))

	err = ebiten.RunGame(&Game{
		ctx:     ctx,
		tuner:   tuner.Create(source, nil, opts...),
		logger:  logger,
		history: circular.CreateBuffer[float64](historySize),
		cents:   make([]float64, historySize),
	})
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}
