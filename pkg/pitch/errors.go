package pitch

import "errors"

var (
	ErrFrameTooShort     = errors.New("pitch: frame must hold at least 4 samples")
	ErrInvalidSampleRate = errors.New("pitch: sample rate must be positive")
	ErrInvalidConfig     = errors.New("pitch: invalid config")
)

/*
 * IsPrecondition reports whether err stems from an invalid frame or sample
 * rate handed to the estimator.
 */
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrFrameTooShort) || errors.Is(err, ErrInvalidSampleRate)
}
