package smf

import "github.com/pkg/errors"

// Every error returned by this package wraps one of these. Test with
// errors.Is.
var (
	// ErrFormat reports a missing or wrong chunk magic, a header length other
	// than 6, or a chunk whose events do not line up with its declared length.
	ErrFormat = errors.New("smf: malformed file")

	// ErrUnsupportedMessage reports a status byte the parser does not handle,
	// including running status and system exclusive events.
	ErrUnsupportedMessage = errors.New("smf: unsupported message")

	// ErrValidation reports a value that cannot be written: an oversized meta
	// payload or delta time, or a track without a terminating meta event.
	ErrValidation = errors.New("smf: validation failed")

	// ErrOutOfRange reports a cursor or index outside its sequence.
	ErrOutOfRange = errors.New("smf: index out of range")
)

func outOfRange(i, n int) error {
	return errors.Wrapf(ErrOutOfRange, "index %d, length %d", i, n)
}
