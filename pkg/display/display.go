/*
 * Package display renders tuner readings as text.
 */
package display

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/metalblueberry/bard/pkg/tuner"
)

/*
 * Global constants.
 */
const (
	PLACEHOLDER = "—"
)

/*
 * Data structure representing the three values of a tuner display.
 */
type Fields struct {
	Note      string
	Frequency string
	Cents     string
}

/*
 * Renders a reading: note label with octave, frequency with two decimals
 * and cents with an explicit sign.
 *
 * Every field holds PLACEHOLDER when no pitch was detected.
 */
func Format(r tuner.Reading) Fields {

	if !r.Voiced() || !r.Note.Valid() {
		return Fields{Note: PLACEHOLDER, Frequency: PLACEHOLDER, Cents: PLACEHOLDER}
	}

	f := Fields{
		Note:      r.Note.String(),
		Frequency: strconv.FormatFloat(r.Frequency(), 'f', 2, 64),
		Cents:     FormatCents(r.Note.Cents),
	}

	return f
}

/*
 * Renders cents as "+3", "-12" or "0".
 */
func FormatCents(c int) string {

	if c > 0 {
		return "+" + strconv.Itoa(c)
	}

	return strconv.Itoa(c)
}

/*
 * Renders the fields as a single status line.
 */
func (this Fields) String() string {
	return fmt.Sprintf("Note: %s | Hz: %s | Cent: %s", this.Note, this.Frequency, this.Cents)
}

/*
 * Data structure representing a terminal display that rewrites a single
 * line per reading.
 */
type Console struct {
	mutex sync.Mutex
	w     io.Writer
	last  string
}

/*
 * Creates a console display writing to w.
 */
func NewConsole(w io.Writer) *Console {
	c := Console{
		w: w,
	}

	return &c
}

/*
 * Implements tuner.Display. Unchanged lines are not rewritten.
 */
func (this *Console) Show(r tuner.Reading) {
	line := Format(r).String()
	this.mutex.Lock()
	defer this.mutex.Unlock()

	if line == this.last {
		return
	}

	this.last = line
	fmt.Fprintf(this.w, "\r%-44s", line)
}

/*
 * Moves the cursor past the status line.
 */
func (this *Console) Finish() {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	fmt.Fprintln(this.w)
}
