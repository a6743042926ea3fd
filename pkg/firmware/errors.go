package firmware

import (
	"errors"
	"fmt"
)

var (
	// ErrNoHeader indicates the input is too short to hold any block header.
	ErrNoHeader = errors.New("firmware: no block header")

	// ErrIncompleteHeader indicates a block header was cut short.
	ErrIncompleteHeader = errors.New("firmware: block header incomplete")
)

// IncompleteHeaderError reports how many header bytes were available.
type IncompleteHeaderError struct {
	Format Format
	Got    int
	Want   int
}

func (e *IncompleteHeaderError) Error() string {
	return fmt.Sprintf("%s block header incomplete: got %d bytes, need %d", e.Format, e.Got, e.Want)
}

// Is makes errors.Is(err, ErrIncompleteHeader) match.
func (e *IncompleteHeaderError) Is(target error) bool {
	return target == ErrIncompleteHeader
}

// UnknownSignatureError indicates the first bytes of a file match neither
// header version.
type UnknownSignatureError struct {
	// Signature is the little-endian 32-bit value at offset 0
	Signature uint32
}

func (e *UnknownSignatureError) Error() string {
	return fmt.Sprintf("unknown file signature 0x%08X", e.Signature)
}

// IsUnknownSignature returns true if the error is an UnknownSignatureError.
func IsUnknownSignature(err error) bool {
	var target *UnknownSignatureError
	return errors.As(err, &target)
}
