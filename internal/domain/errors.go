package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrPoolClosed indicates a submission after the worker pool shut down
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrDecodeFailed matches every *DecodeError via errors.Is
	ErrDecodeFailed = errors.New("decode failed")

	// ErrInvalidFilterState indicates the filtered view lost its invariants.
	// Atomic filter swaps make this unreachable in practice.
	ErrInvalidFilterState = errors.New("invalid filter state")

	// ErrItemNotFound indicates the requested catalog item does not exist
	ErrItemNotFound = errors.New("catalog item not found")

	// ErrUnsupportedFormat indicates the decoder does not handle the file type
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrStoreClosed indicates an operation on a closed rating store
	ErrStoreClosed = errors.New("rating store is closed")
)

// DecodeError records why a single item failed to decode
type DecodeError struct {
	Key  LoadKey
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s (%s): %v", e.Key, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports ErrDecodeFailed as a match so callers need not know the type
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecodeFailed
}
