// Package firmware decodes the block headers of Mi walkie-talkie firmware
// images.
//
// # Image Layout
//
// An image is a sequence of blocks with no padding anywhere. Each block is a
// fixed-size header followed by DataLength payload bytes. All blocks of one
// image share the same header version. All integers are little-endian.
//
// Version 1 header (20 bytes):
//
//	[Signature(2)=0xAA55][BlockType(1)][Unknown3(1)][Reserved(4)]
//	[DataLength(4)][DataCRC32(4)][FirmwareVersion(4)]
//
// Version 2 header (24 bytes):
//
//	[Signature(4)=0x5A][HeaderChecksum(1)][BlockType(1)][HardwareRevision(2)]
//	[FirmwareVersion(4)][DataCRC32(4)][DataLength(4)][Unknown0x14(2)][DeviceType(2)]
//
// HeaderChecksum covers bytes 5..23, everything after the checksum byte.
//
// # Usage
//
// Work out the header version from the first bytes of a file:
//
//	probe := make([]byte, firmware.ProbeSize)
//	n, _ := io.ReadFull(f, probe)
//	format, err := firmware.Detect(probe[:n])
//
// Then decode headers of that version:
//
//	hdr, err := firmware.Decode(format, buf)
//	if err != nil {
//	    return err // *IncompleteHeaderError
//	}
//	if !hdr.ValidSignature() {
//	    fmt.Printf("bad signature 0x%08X\n", hdr.Signature())
//	}
//
// A bad signature is not a decode error so that the offending header can still
// be reported.
package firmware
