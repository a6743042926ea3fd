package scan

import (
	"fwinfo/pkg/firmware"
)

// State is the position of the walker's state machine.
type State int

const (
	ScanningV1 State = iota
	ScanningV2
	StoppedClean
	StoppedError
)

func (s State) String() string {
	switch s {
	case ScanningV1:
		return "scanning V1"
	case ScanningV2:
		return "scanning V2"
	case StoppedClean:
		return "stopped (clean)"
	case StoppedError:
		return "stopped (error)"
	default:
		return "unknown"
	}
}

func scanningState(f firmware.Format) State {
	if f == firmware.FormatV2 {
		return ScanningV2
	}
	return ScanningV1
}

// Block is everything learned about one block during a scan.
type Block struct {
	// Index is the zero-based position of the block in the file
	Index int

	// Offset is the file offset of the header
	Offset int64

	// Header is the decoded header as read from disk
	Header firmware.Header

	// Raw holds the header bytes as read from disk
	Raw []byte

	// ComputedChecksum is the recomputed header checksum (V2 only)
	ComputedChecksum uint8

	// ObservedLength is the number of payload bytes actually present
	ObservedLength uint32

	// ObservedCRC is the CRC-32 of the payload bytes actually present
	ObservedCRC uint32

	// Repair is set when a repair was attempted for this block
	Repair *RepairOutcome
}

// DataOffset returns the file offset of the first payload byte.
func (b *Block) DataOffset() int64 {
	return b.Offset + int64(b.Header.Size())
}

// Shortfall reports whether fewer payload bytes were present than declared.
func (b *Block) Shortfall() bool {
	return b.ObservedLength != b.Header.DataLength()
}

// CRCMismatch reports whether the payload CRC-32 differs from the declared one.
func (b *Block) CRCMismatch() bool {
	return b.ObservedCRC != b.Header.DataCRC32()
}

// ChecksumMismatch reports whether a V2 header checksum is wrong. Always false
// for V1 headers.
func (b *Block) ChecksumMismatch() bool {
	hdr, ok := b.Header.(*firmware.HeaderV2)
	return ok && hdr.Checksum != b.ComputedChecksum
}

// HasMismatch reports whether any integrity check failed.
func (b *Block) HasMismatch() bool {
	return b.Shortfall() || b.CRCMismatch() || b.ChecksumMismatch()
}

// RepairOutcome describes what a repair did to a block header.
type RepairOutcome struct {
	// Header is the corrected header
	Header firmware.Header

	// Written is false when the corrected header equals the one on disk
	Written bool

	// Err is the fatal I/O error of a failed rewrite
	Err error
}

// FaultKind classifies a structural error that stops the scan.
type FaultKind int

const (
	FaultIncompleteHeader FaultKind = iota
	FaultBadSignature
)

func (k FaultKind) String() string {
	switch k {
	case FaultIncompleteHeader:
		return "incomplete header"
	case FaultBadSignature:
		return "bad signature"
	default:
		return "unknown fault"
	}
}

// Fault is a structural error at a block boundary.
type Fault struct {
	Kind   FaultKind
	Format firmware.Format

	// Offset is where the bad header starts
	Offset int64

	// Got is the number of header bytes available (incomplete header)
	Got int

	// Signature is the observed signature (bad signature)
	Signature uint32
}

// Reporter receives the scan results as they are produced.
type Reporter interface {
	// Block is called once per decoded block, after any repair attempt
	Block(b *Block)

	// Fault is called when a structural error stops the scan
	Fault(f *Fault)
}

// Result summarises a finished scan.
type Result struct {
	Format firmware.Format
	State  State

	// Blocks is the number of blocks reported
	Blocks int

	// Mismatches is the number of blocks with at least one integrity error
	Mismatches int

	// Repaired is the number of headers rewritten
	Repaired int

	// BytesScanned is the number of bytes read after the format probe
	BytesScanned int64
}

// OK reports whether the scan reached a clean end of file.
func (r *Result) OK() bool {
	return r.State == StoppedClean
}
