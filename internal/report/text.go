// Package report renders scan results as the human-readable block listing.
package report

import (
	"fmt"
	"io"

	"fwinfo/internal/scan"
	"fwinfo/pkg/firmware"
)

// Text writes one paragraph per block, marking every mismatch inline.
type Text struct {
	w io.Writer
}

// NewText creates a text reporter writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

// Block implements scan.Reporter.
func (t *Text) Block(b *scan.Block) {
	switch hdr := b.Header.(type) {
	case *firmware.HeaderV1:
		t.blockV1(b, hdr)
	case *firmware.HeaderV2:
		t.blockV2(b, hdr)
	}

	if b.Repair != nil {
		switch {
		case b.Repair.Err != nil:
		case b.Repair.Written:
			t.printf("Block header errors fixed\n")
		default:
			t.printf("Block header unchanged, remaining errors cannot be fixed in the header\n")
		}
	}
	t.printf("\n")
}

// Fault implements scan.Reporter.
func (t *Text) Fault(f *scan.Fault) {
	switch f.Kind {
	case scan.FaultIncompleteHeader:
		t.printf("Bad firmware block at 0x%06X\n  Block header incomplete\n\n", f.Offset)
	case scan.FaultBadSignature:
		t.printf("Bad firmware block at 0x%06X:\n  Block header signature: %s\n\n",
			f.Offset, signature(f.Format, f.Signature))
	}
}

func (t *Text) blockV1(b *scan.Block, hdr *firmware.HeaderV1) {
	t.printf("Firmware block at 0x%06X:\n", b.Offset)
	t.printf("  Block header signature: %s (MJDJJ01FY firmware)\n", signature(firmware.FormatV1, hdr.Signature()))
	t.printf("  Block type: %d%s\n", hdr.Type, tag(hdr.BlockTypeName()))
	t.printf("  Unknown [3]: 0x%02X\n", hdr.Unknown3)
	t.dataLength(b)
	t.dataCRC32(b)
	t.printf("  Firmware version: %s\n", hdr.Version())
	t.printf("  Block data starts at 0x%06X\n", b.DataOffset())
}

func (t *Text) blockV2(b *scan.Block, hdr *firmware.HeaderV2) {
	t.printf("Firmware block at 0x%06X:\n", b.Offset)
	t.printf("  Block header signature: %s\n", signature(firmware.FormatV2, hdr.Signature()))
	t.printf("  Block header checksum: 0x%02X", hdr.Checksum)
	if b.ChecksumMismatch() {
		t.printf(" <-- Error! Actual header checksum: 0x%02X", b.ComputedChecksum)
	}
	t.printf("\n")
	t.printf("  Block type: %d%s\n", hdr.Type, tag(hdr.BlockTypeName()))
	t.printf("  Device hardware revision: %d\n", hdr.HardwareRevision)
	t.printf("  Firmware version: %s\n", hdr.Version())
	t.dataCRC32(b)
	t.dataLength(b)
	t.printf("  Unknown [0x14]: 0x%04X\n", hdr.Unknown0x14)
	t.printf("  Device type: %d%s\n", hdr.DeviceType, tag(hdr.DeviceTypeName()))
	t.printf("  Block data starts at 0x%06X\n", b.DataOffset())
}

func (t *Text) dataLength(b *scan.Block) {
	declared := b.Header.DataLength()
	t.printf("  Block data length: 0x%06X (%d)", declared, declared)
	if b.Shortfall() {
		t.printf(" <-- Error! Only 0x%06X (%d) data bytes available", b.ObservedLength, b.ObservedLength)
	}
	t.printf("\n")
}

func (t *Text) dataCRC32(b *scan.Block) {
	t.printf("  Block data CRC32: 0x%08X", b.Header.DataCRC32())
	if b.CRCMismatch() {
		t.printf(" <-- Error! Actual data CRC32: 0x%08X", b.ObservedCRC)
	}
	t.printf("\n")
}

func (t *Text) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(t.w, format, args...)
}

func signature(f firmware.Format, sig uint32) string {
	if f == firmware.FormatV1 {
		return fmt.Sprintf("0x%04X", sig)
	}
	return fmt.Sprintf("0x%08X", sig)
}

func tag(name string) string {
	if name == "" {
		return ""
	}
	return " (" + name + ")"
}
