/*
 * Package capture provides sample sources for the tuner: a live microphone,
 * WAV files, raw unsigned 8-bit PCM streams and a synthetic sine.
 */
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

/*
 * Global constants.
 */
const (
	DEFAULT_SAMPLE_RATE = 44100
)

var (
	ErrClosed  = errors.New("capture: source closed")
	ErrStopped = errors.New("capture: microphone stopped")
)

/*
 * Maps an unsigned 8-bit time-domain sample to [-1, 1).
 *
 * v = (raw - 128) / 128
 */
func NormalizeByte(raw uint8) float64 {
	return (float64(raw) - 128) / 128
}

/*
 * Writes the normalized form of raw into dst. Converts
 * min(len(dst), len(raw)) samples and returns that count.
 */
func NormalizeBytes(dst []float64, raw []uint8) int {
	n := min(len(dst), len(raw))

	for i := 0; i < n; i++ {
		dst[i] = NormalizeByte(raw[i])
	}

	return n
}

/*
 * Data structure representing a reader of raw unsigned 8-bit mono PCM, as
 * produced by `arecord -f U8`. Every Frame call consumes the next len(dst)
 * bytes.
 */
type U8Reader struct {
	mutex sync.Mutex
	r     io.Reader
	rate  int
	raw   []uint8
}

/*
 * Creates a source reading samples captured at sampleRate from r.
 */
func NewU8Reader(r io.Reader, sampleRate int) *U8Reader {
	u := U8Reader{
		r:    r,
		rate: sampleRate,
	}

	return &u
}

/*
 * Fills dst with the next len(dst) samples. A short final read is reported
 * as io.EOF.
 */
func (this *U8Reader) Frame(dst []float64) (int, error) {
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if cap(this.raw) < len(dst) {
		this.raw = make([]uint8, len(dst))
	}

	raw := this.raw[:len(dst)]
	_, err := io.ReadFull(this.r, raw)

	if err != nil {

		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, io.EOF
		}

		if errors.Is(err, io.EOF) {
			return 0, err
		}

		return 0, fmt.Errorf("capture: read u8 pcm: %w", err)
	}

	NormalizeBytes(dst, raw)
	return this.rate, nil
}
