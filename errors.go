package capnp

import (
	"fmt"

	"github.com/pkg/errors"
)

// InvalidMessage is returned whenever an accessor, dereference, or codec
// routine detects structural corruption in a message: an out-of-bounds
// slice, a malformed pointer discriminator, a composite-list tag mismatch,
// or a far-pointer chain that runs deeper than the format allows.
//
// Some programmer-logic mistakes are reported through errors as well:
// AllocStructStorage rejects a struct layout whose data size does not fit
// a 16-bit word count with an InvalidMessage, and any allocation against a
// read-only arena returns ErrReadOnly. Slice setters do not check the
// arena's capability, so writing through a read-only value is not detected.
type InvalidMessage struct {
	reason string
}

func (e *InvalidMessage) Error() string {
	return "capnp: invalid message: " + e.reason
}

// newInvalidMessage builds an InvalidMessage carrying a stack trace at the
// point of detection, so a corruption found three dereferences deep still
// reports where it actually happened.
func newInvalidMessage(format string, args ...any) error {
	return errors.WithStack(&InvalidMessage{reason: fmt.Sprintf(format, args...)})
}

// wrapInvalidMessage adds caller context to an error already on its way up
// the dereference chain without losing the original InvalidMessage cause.
func wrapInvalidMessage(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, context)
}

// IsInvalidMessage reports whether err (or a cause in its chain) is an
// InvalidMessage.
func IsInvalidMessage(err error) bool {
	var im *InvalidMessage
	return errors.As(err, &im)
}

// ErrTraversalLimitExceeded is returned when dereferencing an object would
// push a Message's cumulative traversal accounting past its configured
// budget (see Message.SetTraversalLimit). It guards against a small
// message whose pointers alias the same region repeatedly, amplifying a
// few wire bytes into an unbounded amount of traversal work.
var ErrTraversalLimitExceeded = errors.New("capnp: message traversal limit exceeded")
