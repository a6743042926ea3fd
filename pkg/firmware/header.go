package firmware

import (
	"encoding/binary"
	"fmt"
)

// Header signatures and sizes.
const (
	// SignatureV1 marks a version 1 block header
	SignatureV1 uint16 = 0xAA55

	// SignatureV2 marks a version 2 block header
	SignatureV2 uint32 = 0x5A

	// HeaderSizeV1 is the encoded size of a version 1 header
	HeaderSizeV1 = 20

	// HeaderSizeV2 is the encoded size of a version 2 header
	HeaderSizeV2 = 24

	// ProbeSize is the window needed to tell the two versions apart
	ProbeSize = HeaderSizeV2

	// MinProbeSize is the smallest probe that can hold any header
	MinProbeSize = HeaderSizeV1
)

// Format identifies the header version used throughout an image.
type Format int

const (
	FormatUnknown Format = iota
	FormatV1
	FormatV2
)

func (f Format) String() string {
	switch f {
	case FormatV1:
		return "V1"
	case FormatV2:
		return "V2"
	default:
		return "unknown"
	}
}

// HeaderSize returns the encoded header size for the format, or 0.
func (f Format) HeaderSize() int {
	switch f {
	case FormatV1:
		return HeaderSizeV1
	case FormatV2:
		return HeaderSizeV2
	default:
		return 0
	}
}

// Header is a decoded block header of either version.
type Header interface {
	// Format returns the header version
	Format() Format

	// Size returns the encoded size in bytes
	Size() int

	// Signature returns the raw signature field widened to 32 bits
	Signature() uint32

	// ValidSignature reports whether the signature matches the version
	ValidSignature() bool

	// BlockType returns the raw block type
	BlockType() uint8

	// BlockTypeName returns the human-readable block type, or ""
	BlockTypeName() string

	// DataLength returns the declared payload length
	DataLength() uint32

	// DataCRC32 returns the declared payload CRC-32
	DataCRC32() uint32

	// Version returns the decoded firmware version
	Version() Version

	// Marshal encodes the header exactly as it is laid out on disk
	Marshal() []byte
}

// Detect works out the header version from the leading bytes of an image.
//
// The version 2 signature is checked first. A probe shorter than MinProbeSize
// cannot hold any header and yields ErrNoHeader.
func Detect(probe []byte) (Format, error) {
	if len(probe) < MinProbeSize {
		return FormatUnknown, ErrNoHeader
	}

	sig := binary.LittleEndian.Uint32(probe[0:4])
	switch {
	case sig == SignatureV2:
		return FormatV2, nil
	case binary.LittleEndian.Uint16(probe[0:2]) == SignatureV1:
		return FormatV1, nil
	default:
		return FormatUnknown, &UnknownSignatureError{Signature: sig}
	}
}

// Decode decodes a header of the given format.
func Decode(format Format, data []byte) (Header, error) {
	switch format {
	case FormatV1:
		h, err := DecodeV1(data)
		if err != nil {
			return nil, err
		}
		return h, nil
	case FormatV2:
		h, err := DecodeV2(data)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, fmt.Errorf("cannot decode header: format %s", format)
	}
}

// Version is a firmware version packed into 32 bits as
// major(8).minor(8).patch(16).
type Version struct {
	Major uint8
	Minor uint8
	Patch uint16
}

// ParseVersion unpacks a raw firmware version field.
func ParseVersion(raw uint32) Version {
	return Version{
		Major: uint8(raw >> 24),
		Minor: uint8(raw >> 16),
		Patch: uint16(raw),
	}
}

// Raw packs the version back into its 32-bit form.
func (v Version) Raw() uint32 {
	return uint32(v.Major)<<24 | uint32(v.Minor)<<16 | uint32(v.Patch)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
