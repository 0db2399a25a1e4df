package client

import (
	"errors"
	"fmt"
)

// ErrNoResults is returned by SelectFirst when the executor answered with an
// empty row set. It is decided locally; the executor never signals it.
var ErrNoResults = errors.New("no results")

// OpenError is returned by Open when the executor replied false instead of
// failing outright.
type OpenError struct {
	Path string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("could not open database at %s", e.Path)
}
