// Package repair rewrites corrected block headers in place.
package repair

import (
	"fmt"
	"io"

	"fwinfo/pkg/firmware"
)

// Error is a failed header rewrite. The file is in an unknown state after it
// and scanning must not continue.
type Error struct {
	// Offset is the header offset that was being rewritten
	Offset int64

	// Op is the step that failed: "tell", "seek", "write" or "restore"
	Op string

	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rewrite header at 0x%06X: %s: %v", e.Offset, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Policy controls which header fields a repair touches.
type Policy struct {
	// PersistObservedLength writes the observed payload length into the
	// header. When false the declared length is kept, so a truncated block
	// still reports a length mismatch on every later run; a second repair
	// writes nothing but does not reach zero mismatches. Set it to make the
	// mismatch count idempotent across repair runs.
	PersistObservedLength bool
}

// Correct returns a copy of h with the payload CRC-32 replaced by observedCRC,
// the length replaced by observedLen if the policy asks for it, and for V2
// headers the header checksum recomputed over the updated fields.
func Correct(h firmware.Header, observedCRC, observedLen uint32, p Policy) firmware.Header {
	switch hdr := h.(type) {
	case *firmware.HeaderV1:
		fixed := *hdr
		fixed.CRC32 = observedCRC
		if p.PersistObservedLength {
			fixed.Length = observedLen
		}
		return &fixed
	case *firmware.HeaderV2:
		fixed := *hdr
		fixed.CRC32 = observedCRC
		if p.PersistObservedLength {
			fixed.Length = observedLen
		}
		fixed.Checksum = fixed.ComputeChecksum()
		return &fixed
	default:
		return h
	}
}

// RewriteHeader writes hdr at offset and puts the file cursor back where it
// was. Any failure is returned as *Error.
func RewriteHeader(f io.WriteSeeker, hdr []byte, offset int64) error {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return &Error{Offset: offset, Op: "tell", Err: err}
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return &Error{Offset: offset, Op: "seek", Err: err}
	}

	n, err := f.Write(hdr)
	if err == nil && n != len(hdr) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &Error{Offset: offset, Op: "write", Err: err}
	}

	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		return &Error{Offset: offset, Op: "restore", Err: err}
	}
	return nil
}
