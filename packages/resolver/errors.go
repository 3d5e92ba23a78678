package resolver

import (
	"errors"
	"fmt"
)

type ResolutionErrorKind string

const (
	InvalidURL  ResolutionErrorKind = "invalid-url"
	FetchFailed ResolutionErrorKind = "fetch-failed"
)

// ResolutionError is the only error type Resolve and Trace return.
type ResolutionError struct {
	Kind ResolutionErrorKind
	URL  string
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is matches another *ResolutionError by kind, so callers can write
// errors.Is(err, &ResolutionError{Kind: FetchFailed}).
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	return ok && t.Kind == e.Kind
}

// KindOf reports the kind of a ResolutionError anywhere in err's chain, or ""
// when there is none.
func KindOf(err error) ResolutionErrorKind {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
