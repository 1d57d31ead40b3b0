package negotiation

import (
	"errors"
	"fmt"
)

var (
	ErrNotAcceptable    = errors.New("not acceptable")
	ErrNoFormatsServed  = fmt.Errorf("%w: requested image type is not served", ErrNotAcceptable)
	ErrNoMatchingFormat = fmt.Errorf("%w: no served format satisfies the Accept header", ErrNotAcceptable)
)

// NotServedError reports that the client asked only for formats the server
// knows but has disabled.
type NotServedError struct {
	MediaTypes []string
}

func (e *NotServedError) Error() string {
	if len(e.MediaTypes) == 1 {
		return fmt.Sprintf("%s is not served", e.MediaTypes[0])
	}
	return fmt.Sprintf("%v are not served", e.MediaTypes)
}

func (e *NotServedError) Unwrap() error { return ErrNotAcceptable }
