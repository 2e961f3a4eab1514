package capture

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/metalblueberry/bard/pkg/circular"
	"github.com/metalblueberry/bard/pkg/tuner"
)

/*
 * Data structure selecting and configuring the input device.
 *
 * Device is matched as a substring of the device name, empty selects the
 * default input device. A positive SampleRate overrides the device default.
 * FrameSize is the number of most recent samples kept for analysis.
 */
type MicrophoneConfig struct {
	Device     string
	SampleRate float64
	FrameSize  int
	LowLatency bool
}

/*
 * Microphone keeps the most recent FrameSize samples of a mono portaudio
 * input stream. The stream callback overwrites the ring buffer; readers
 * copy it out, so there is no queueing and no backlog.
 */
type Microphone struct {
	mutex      sync.Mutex
	stream     *portaudio.Stream
	device     *portaudio.DeviceInfo
	buffer     *circular.Buffer[float64]
	sampleRate int
	running    bool
	closed     bool
	block      []float64
}

/*
 * Initializes portaudio and opens an input stream. The stream is not
 * started; call Start.
 */
func OpenMicrophone(cfg MicrophoneConfig) (*Microphone, error) {
	if cfg.FrameSize <= 0 {
		return nil, fmt.Errorf("capture: frame size %d must be positive", cfg.FrameSize)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("capture: initialize portaudio: %w", err)
	}

	device, err := findInputDevice(cfg.Device)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	var p portaudio.StreamParameters
	if cfg.LowLatency {
		p = portaudio.LowLatencyParameters(device, nil)
	} else {
		p = portaudio.HighLatencyParameters(device, nil)
	}
	p.Input.Channels = 1
	if cfg.SampleRate > 0 {
		p.SampleRate = cfg.SampleRate
	}

	m := Microphone{
		device:     device,
		buffer:     circular.CreateBuffer[float64](cfg.FrameSize),
		sampleRate: int(p.SampleRate),
	}

	m.stream, err = portaudio.OpenStream(p, m.processAudio)

	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("capture: open stream on %q: %w", device.Name, err)
	}

	return &m, nil
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {

	if name == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("capture: default input device: %w", err)
		}
		return device, nil
	}

	h, err := portaudio.DefaultHostApi()
	if err != nil {
		return nil, fmt.Errorf("capture: default host api: %w", err)
	}

	for _, device := range h.Devices {
		if device.MaxInputChannels > 0 && strings.Contains(device.Name, name) {
			return device, nil
		}
	}

	return nil, fmt.Errorf("capture: no input device matching %q", name)
}

/*
 * Runs on the portaudio callback thread.
 */
func (this *Microphone) processAudio(in []float32) {

	if cap(this.block) < len(in) {
		this.block = make([]float64, len(in))
	}

	block := this.block[:len(in)]

	for i, s := range in {
		block[i] = float64(s)
	}

	this.buffer.Write(block...)
}

/*
 * Returns the name of the opened input device.
 */
func (this *Microphone) DeviceName() string {
	return this.device.Name
}

/*
 * Returns the stream sample rate in Hz.
 */
func (this *Microphone) SampleRate() int {
	return this.sampleRate
}

/*
 * Begins capturing. Starting a running microphone is a no-op.
 */
func (this *Microphone) Start() error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if this.closed {
		return ErrClosed
	}

	if this.running {
		return nil
	}

	this.buffer.Reset()
	err := this.stream.Start()

	if err != nil {
		return fmt.Errorf("capture: start stream: %w", err)
	}

	this.running = true
	return nil
}

/*
 * Halts capturing. Stopping a stopped microphone is a no-op.
 */
func (this *Microphone) Stop() error {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.stop()
}

func (this *Microphone) stop() error {

	if !this.running {
		return nil
	}

	this.running = false
	err := this.stream.Stop()

	if err != nil {
		return fmt.Errorf("capture: stop stream: %w", err)
	}

	return nil
}

/*
 * Returns true while the stream is capturing.
 */
func (this *Microphone) Running() bool {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return this.running
}

/*
 * Stops the stream, closes it and terminates portaudio. Every step runs
 * even if an earlier one fails, the failures are joined.
 */
func (this *Microphone) Close() error {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if this.closed {
		return nil
	}

	this.closed = true

	return runAll(
		this.stop,
		func() error {
			if err := this.stream.Close(); err != nil {
				return fmt.Errorf("capture: close stream: %w", err)
			}
			return nil
		},
		func() error {
			if err := portaudio.Terminate(); err != nil {
				return fmt.Errorf("capture: terminate portaudio: %w", err)
			}
			return nil
		},
	)
}

/*
 * Runs every step in order, regardless of earlier failures, and joins the
 * errors.
 */
func runAll(steps ...func() error) error {
	var errs []error

	for _, step := range steps {

		if err := step(); err != nil {
			errs = append(errs, err)
		}

	}

	return errors.Join(errs...)
}

/*
 * Copies the most recent samples into dst, whose length must equal the
 * configured frame size.
 *
 * Returns ErrStopped while not capturing and tuner.ErrNotReady until a
 * full frame has been recorded since Start.
 */
func (this *Microphone) Frame(dst []float64) (int, error) {

	if !this.Running() {
		return 0, ErrStopped
	}

	if !this.buffer.Full() {
		return 0, fmt.Errorf("capture: %w", tuner.ErrNotReady)
	}

	err := this.buffer.Retrieve(dst)

	if err != nil {
		return 0, fmt.Errorf("capture: %w", err)
	}

	return this.sampleRate, nil
}
