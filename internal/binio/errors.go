// Package binio provides the positional byte views every decoder in this
// module reads from, along with the error taxonomy shared by all of them.
package binio

import (
	"errors"
	"fmt"
)

var (
	// ErrNotThisFormat reports a signature mismatch while sniffing. Callers
	// are expected to try the next format.
	ErrNotThisFormat = errors.New("not this format")

	// ErrOutOfRange reports a read or seek outside the bounds of a Source.
	ErrOutOfRange = errors.New("out of range")

	// ErrMalformedHeader reports a structurally required field with an
	// unexpected value.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrUnsupportedBitWidth reports a bit packing width other than 1, 2, 4 or 8.
	ErrUnsupportedBitWidth = errors.New("unsupported bit width")

	// ErrUnsupportedVariant reports a recognised sub-format that is not implemented.
	ErrUnsupportedVariant = errors.New("unsupported variant")

	// ErrIOFailure wraps failures of the underlying storage.
	ErrIOFailure = errors.New("i/o failure")
)

// Malformed returns an error wrapping ErrMalformedHeader with a description.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedHeader, fmt.Sprintf(format, args...))
}

// Unsupported returns an error wrapping ErrUnsupportedVariant with a description.
func Unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedVariant, fmt.Sprintf(format, args...))
}

// IOFailure wraps a storage error so that it matches ErrIOFailure while
// keeping the original error reachable through errors.Is/As.
func IOFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIOFailure, err)
}
