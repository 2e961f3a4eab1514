package capture

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

var ErrInvalidWAV = errors.New("capture: invalid wav file")

/*
 * Data structure representing the first channel of a PCM WAV file,
 * replayed frame by frame.
 *
 * Each Frame call returns the next window and advances by the hop size.
 */
type WAVFile struct {
	samples []float64
	rate    int
	hop     int
	pos     int
	loop    bool
}

/*
 * Decodes the file at path. A hop of zero advances by a full frame.
 */
func OpenWAV(path string, hop int) (*WAVFile, error) {
	f, err := os.Open(path)

	if err != nil {
		return nil, fmt.Errorf("capture: open %q: %w", path, err)
	}

	defer f.Close()
	w, err := DecodeWAV(f, hop)

	if err != nil {
		return nil, fmt.Errorf("capture: decode %q: %w", path, err)
	}

	return w, nil
}

/*
 * Reads a complete WAV stream from r.
 */
func DecodeWAV(r io.ReadSeeker, hop int) (*WAVFile, error) {
	dec := wav.NewDecoder(r)

	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := dec.FullPCMBuffer()

	if err != nil {
		return nil, fmt.Errorf("capture: read pcm: %w", err)
	}

	channels := int(dec.NumChans)

	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidWAV, channels)
	}

	depth := int(dec.BitDepth)

	if depth < 8 || depth > 32 {
		return nil, fmt.Errorf("%w: bit depth %d", ErrInvalidWAV, depth)
	}

	samples := make([]float64, 0, len(buf.Data)/channels)

	/*
	 * Interleaved data, keep the first channel.
	 */
	for i := 0; i < len(buf.Data); i += channels {
		samples = append(samples, normalizePCM(buf.Data[i], depth))
	}

	w := WAVFile{
		samples: samples,
		rate:    int(dec.SampleRate),
		hop:     hop,
	}

	return &w, nil
}

/*
 * Scales a signed integer sample of the given bit depth to [-1, 1).
 * 8-bit WAV data is unsigned.
 */
func normalizePCM(v int, depth int) float64 {

	if depth == 8 {
		return NormalizeByte(uint8(v))
	}

	return float64(v) / float64(int64(1)<<(depth-1))
}

/*
 * Returns the sample rate of the file.
 */
func (this *WAVFile) SampleRate() int {
	return this.rate
}

/*
 * Returns the number of samples in the first channel.
 */
func (this *WAVFile) Len() int {
	return len(this.samples)
}

/*
 * Makes Frame start over at the first sample instead of reporting io.EOF.
 */
func (this *WAVFile) SetLoop(loop bool) {
	this.loop = loop
}

/*
 * Copies the next len(dst) samples into dst. Returns io.EOF once fewer than
 * len(dst) samples remain, unless looping. A file shorter than one frame
 * always reports io.EOF.
 */
func (this *WAVFile) Frame(dst []float64) (int, error) {

	if this.pos+len(dst) > len(this.samples) {

		if !this.loop || len(dst) > len(this.samples) {
			return 0, io.EOF
		}

		this.Rewind()
	}

	copy(dst, this.samples[this.pos:this.pos+len(dst)])
	hop := this.hop

	if hop <= 0 {
		hop = len(dst)
	}

	this.pos += hop
	return this.rate, nil
}

/*
 * Restarts playback at the first sample.
 */
func (this *WAVFile) Rewind() {
	this.pos = 0
}
