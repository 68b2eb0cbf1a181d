package modulebox

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a module does not exist.
var ErrNotFound = errors.New("not found")

// ErrExtract wraps a parser failure for a supported format. The parser's own
// error stays reachable through errors.Is and errors.As.
type ErrExtract struct {
	Path   string
	Format string
	Err    error
}

func (e *ErrExtract) Error() string {
	return fmt.Sprintf("extract %s %s: %v", e.Format, e.Path, e.Err)
}

func (e *ErrExtract) Unwrap() error { return e.Err }

// ErrHTTP is a failure with an HTTP status attached.
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
