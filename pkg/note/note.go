/*
 * Package note maps frequencies onto the twelve-tone equal-tempered scale.
 */
package note

import (
	"fmt"
	"math"
)

/*
 * Global constants.
 *
 * Notes are numbered the MIDI way, C4 = 60.
 */
const (
	A4_FREQUENCY = 440.0
	A4_NUMBER    = 69
)

/*
 * Pitch classes starting at C.
 */
var Names = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

/*
 * Data structure representing the nearest tempered pitch to a frequency.
 *
 * Cents is the deviation from that pitch in [-50, 50], positive when sharp.
 */
type Note struct {
	Name   string
	Octave int
	Cents  int
	number int
}

/*
 * Returned for frequencies that have no note.
 */
var None = Note{}

/*
 * Returns true if the note names a pitch.
 */
func (this Note) Valid() bool {
	return this.Name != ""
}

/*
 * Returns the note number.
 */
func (this Note) MIDI() int {
	return this.number
}

/*
 * Renders the note as name plus octave, e.g. "A4".
 */
func (this Note) String() string {

	if !this.Valid() {
		return "---"
	}

	return fmt.Sprintf("%s%d", this.Name, this.Octave)
}

/*
 * Data structure converting frequencies to notes relative to a reference
 * pitch for A4. Create it with NewMapper.
 */
type Mapper struct {
	reference float64
}

type Option func(*Mapper)

/*
 * Tunes A4 to hz instead of 440. Non-positive and infinite values are
 * ignored.
 */
func WithReference(hz float64) Option {
	return func(m *Mapper) {
		if hz > 0 && !math.IsInf(hz, 0) {
			m.reference = hz
		}
	}
}

/*
 * Creates a mapper tuned to A4 = 440 Hz unless overridden.
 */
func NewMapper(opts ...Option) Mapper {
	m := Mapper{
		reference: A4_FREQUENCY,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}

	return m
}

/*
 * Returns the frequency of A4.
 */
func (this Mapper) Reference() float64 {
	return this.reference
}

/*
 * Returns the nearest note to frequency.
 *
 * n = 69 + 12 * log2(f / A4)
 *
 * Non-positive and non-finite frequencies map to None.
 */
func (this Mapper) Map(frequency float64) Note {

	if !(frequency > 0) || math.IsInf(frequency, 1) {
		return None
	}

	midi := A4_NUMBER + 12*math.Log2(frequency/this.reference)
	nearest := int(round(midi))

	n := Note{
		Name:   Names[((nearest%12)+12)%12],
		Octave: int(math.Floor(float64(nearest)/12)) - 1,
		Cents:  int(round((midi - float64(nearest)) * 100)),
		number: nearest,
	}

	return n
}

/*
 * Returns the tempered frequency of note number midi.
 *
 * f(n) = 2^((n - 69) / 12) * A4
 */
func (this Mapper) Frequency(midi int) float64 {
	return this.reference * math.Exp2(float64(midi-A4_NUMBER)/12)
}

var standard = NewMapper()

/*
 * Maps frequency with A4 = 440 Hz.
 */
func FromFrequency(frequency float64) Note {
	return standard.Map(frequency)
}

/*
 * Returns the frequency of note number midi with A4 = 440 Hz.
 */
func Frequency(midi int) float64 {
	return standard.Frequency(midi)
}

/*
 * Rounds half-way cases toward positive infinity.
 */
func round(x float64) float64 {
	return math.Floor(x + 0.5)
}
