package capture

import "math"

/*
 * Data structure representing a synthetic source producing a continuous
 * sine wave.
 */
type Sine struct {
	Frequency  float64
	Amplitude  float64
	SampleRate int
	phase      float64
}

/*
 * Creates a sine source. A non-positive sample rate selects
 * DEFAULT_SAMPLE_RATE.
 */
func NewSine(frequency float64, amplitude float64, sampleRate int) *Sine {

	if sampleRate <= 0 {
		sampleRate = DEFAULT_SAMPLE_RATE
	}

	s := Sine{
		Frequency:  frequency,
		Amplitude:  amplitude,
		SampleRate: sampleRate,
	}

	return &s
}

/*
 * Fills dst with the next len(dst) samples of the wave.
 */
func (this *Sine) Frame(dst []float64) (int, error) {
	step := 2 * math.Pi * this.Frequency / float64(this.SampleRate)

	for i := range dst {
		dst[i] = this.Amplitude * math.Sin(this.phase)
		this.phase = math.Mod(this.phase+step, 2*math.Pi)
	}

	return this.SampleRate, nil
}
