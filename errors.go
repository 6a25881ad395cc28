package spindle

import (
	"errors"
	"fmt"
)

// ErrInvalidYield reports a callback yield that carries neither an Item nor
// a Request. Only the zero Yield (or Emit(nil) / Follow(nil)) has that
// shape.
var ErrInvalidYield = errors.New("spindle: yield carries neither item nor request")

// CallbackError wraps a failure inside a spider callback. It is fatal: the
// crawl that observed it terminates and reports it through Err.
type CallbackError struct {
	// URL is the response URL the callback was handling.
	URL string
	// Err is the callback's own error, or ErrInvalidYield.
	Err error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback for %s: %v", e.URL, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// transientError marks a failure the crawl survives by dropping the request
// that caused it: transport faults and single cache operations. The wrap
// happens only at the fetch and cache call sites, keeping the skip-or-abort
// decision in one place.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

func markTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was classified as recoverable: the engine
// logged it, dropped one request, and kept crawling.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
