package asidecache

import (
	"errors"
	"fmt"
)

var (
	// ErrSerialization wraps codec failures on both the write and the read path.
	ErrSerialization = errors.New("asidecache: serialization failed")
	// ErrNilStore is returned by New when Options.Store is nil.
	ErrNilStore = errors.New("asidecache: store is required")
)

// CodecError carries the key and direction of a codec failure.
// It matches ErrSerialization with errors.Is.
type CodecError struct {
	Key    string
	Decode bool
	Err    error
}

func (e *CodecError) Error() string {
	op := "encode"
	if e.Decode {
		op = "decode"
	}
	return fmt.Sprintf("asidecache: %s %q: %v", op, e.Key, e.Err)
}

func (e *CodecError) Unwrap() []error { return []error{ErrSerialization, e.Err} }
