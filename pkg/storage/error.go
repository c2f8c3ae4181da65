package storage

import (
	"errors"
	"fmt"
)

// ErrNilRecord is returned when a driver is given a nil record.
var ErrNilRecord = errors.New("nil record")

// UnknownKindError is returned for a Kind no driver knows.
type UnknownKindError struct {
	Kind Kind
}

func (e UnknownKindError) Error() string {
	return fmt.Sprintf("unknown record kind: %q", string(e.Kind))
}
