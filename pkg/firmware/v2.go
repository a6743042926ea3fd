package firmware

import (
	"encoding/binary"

	"fwinfo/pkg/checksum"
)

// checksumOffset is the position of the header checksum byte in a V2 header.
const checksumOffset = 4

// HeaderV2 is the 24-byte block header used by MJDJJ02FY/MJDJJ03FY firmware.
type HeaderV2 struct {
	// Sig must equal SignatureV2
	Sig uint32

	// Checksum is the stored header checksum over bytes 5..23
	Checksum uint8

	// Type is the block type (0 = CPU, 1 = BLE, 2 = Ext. ROM)
	Type uint8

	// HardwareRevision is the device hardware revision
	HardwareRevision uint16

	// FirmwareVersion is the packed firmware version
	FirmwareVersion uint32

	// CRC32 is the declared payload CRC-32
	CRC32 uint32

	// Length is the declared payload length
	Length uint32

	// Unknown0x14 is the 16-bit field at offset 0x14
	Unknown0x14 uint16

	// DeviceType identifies the target device (4 = MJDJJ02FY, 5 = MJDJJ03FY)
	DeviceType uint16
}

// DecodeV2 decodes a version 2 header from the first HeaderSizeV2 bytes of data.
func DecodeV2(data []byte) (*HeaderV2, error) {
	if len(data) < HeaderSizeV2 {
		return nil, &IncompleteHeaderError{Format: FormatV2, Got: len(data), Want: HeaderSizeV2}
	}
	return &HeaderV2{
		Sig:              binary.LittleEndian.Uint32(data[0:4]),
		Checksum:         data[4],
		Type:             data[5],
		HardwareRevision: binary.LittleEndian.Uint16(data[6:8]),
		FirmwareVersion:  binary.LittleEndian.Uint32(data[8:12]),
		CRC32:            binary.LittleEndian.Uint32(data[12:16]),
		Length:           binary.LittleEndian.Uint32(data[16:20]),
		Unknown0x14:      binary.LittleEndian.Uint16(data[20:22]),
		DeviceType:       binary.LittleEndian.Uint16(data[22:24]),
	}, nil
}

// Marshal encodes the header into its on-disk form. The stored Checksum is
// written as is; see ComputeChecksum.
func (h *HeaderV2) Marshal() []byte {
	buf := make([]byte, HeaderSizeV2)
	binary.LittleEndian.PutUint32(buf[0:4], h.Sig)
	buf[4] = h.Checksum
	buf[5] = h.Type
	binary.LittleEndian.PutUint16(buf[6:8], h.HardwareRevision)
	binary.LittleEndian.PutUint32(buf[8:12], h.FirmwareVersion)
	binary.LittleEndian.PutUint32(buf[12:16], h.CRC32)
	binary.LittleEndian.PutUint32(buf[16:20], h.Length)
	binary.LittleEndian.PutUint16(buf[20:22], h.Unknown0x14)
	binary.LittleEndian.PutUint16(buf[22:24], h.DeviceType)
	return buf
}

// ComputeChecksum returns the header checksum of the current field values.
func (h *HeaderV2) ComputeChecksum() uint8 {
	return checksum.Header(h.Marshal()[checksumOffset+1:])
}

// ChecksumValid reports whether the stored checksum matches the fields.
func (h *HeaderV2) ChecksumValid() bool {
	return h.Checksum == h.ComputeChecksum()
}

func (h *HeaderV2) Format() Format { return FormatV2 }
func (h *HeaderV2) Size() int { return HeaderSizeV2 }
func (h *HeaderV2) Signature() uint32 { return h.Sig }
func (h *HeaderV2) ValidSignature() bool { return h.Sig == SignatureV2 }
func (h *HeaderV2) BlockType() uint8 { return h.Type }
func (h *HeaderV2) DataLength() uint32 { return h.Length }
func (h *HeaderV2) DataCRC32() uint32 { return h.CRC32 }
func (h *HeaderV2) Version() Version { return ParseVersion(h.FirmwareVersion) }

// BlockTypeName returns "CPU", "BLE" or "Ext. ROM" for known block types.
func (h *HeaderV2) BlockTypeName() string {
	switch h.Type {
	case 0:
		return "CPU"
	case 1:
		return "BLE"
	case 2:
		return "Ext. ROM"
	default:
		return ""
	}
}

// DeviceTypeName returns the device model for known device types.
func (h *HeaderV2) DeviceTypeName() string {
	switch h.DeviceType {
	case 4:
		return "MJDJJ02FY"
	case 5:
		return "MJDJJ03FY"
	default:
		return ""
	}
}
