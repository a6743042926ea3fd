package firmware

import "encoding/binary"

// HeaderV1 is the 20-byte block header used by MJDJJ01FY firmware.
type HeaderV1 struct {
	// Sig must equal SignatureV1
	Sig uint16

	// Type is the block type (1 = CPU, 2 = BLE)
	Type uint8

	// Unknown3 is the byte at offset 3
	Unknown3 uint8

	// Reserved is conventionally 0
	Reserved uint32

	// Length is the declared payload length
	Length uint32

	// CRC32 is the declared payload CRC-32
	CRC32 uint32

	// FirmwareVersion is the packed firmware version
	FirmwareVersion uint32
}

// DecodeV1 decodes a version 1 header from the first HeaderSizeV1 bytes of data.
func DecodeV1(data []byte) (*HeaderV1, error) {
	if len(data) < HeaderSizeV1 {
		return nil, &IncompleteHeaderError{Format: FormatV1, Got: len(data), Want: HeaderSizeV1}
	}
	return &HeaderV1{
		Sig:             binary.LittleEndian.Uint16(data[0:2]),
		Type:            data[2],
		Unknown3:        data[3],
		Reserved:        binary.LittleEndian.Uint32(data[4:8]),
		Length:          binary.LittleEndian.Uint32(data[8:12]),
		CRC32:           binary.LittleEndian.Uint32(data[12:16]),
		FirmwareVersion: binary.LittleEndian.Uint32(data[16:20]),
	}, nil
}

// Marshal encodes the header into its on-disk form.
func (h *HeaderV1) Marshal() []byte {
	buf := make([]byte, HeaderSizeV1)
	binary.LittleEndian.PutUint16(buf[0:2], h.Sig)
	buf[2] = h.Type
	buf[3] = h.Unknown3
	binary.LittleEndian.PutUint32(buf[4:8], h.Reserved)
	binary.LittleEndian.PutUint32(buf[8:12], h.Length)
	binary.LittleEndian.PutUint32(buf[12:16], h.CRC32)
	binary.LittleEndian.PutUint32(buf[16:20], h.FirmwareVersion)
	return buf
}

func (h *HeaderV1) Format() Format { return FormatV1 }
func (h *HeaderV1) Size() int { return HeaderSizeV1 }
func (h *HeaderV1) Signature() uint32 { return uint32(h.Sig) }
func (h *HeaderV1) ValidSignature() bool { return h.Sig == SignatureV1 }
func (h *HeaderV1) BlockType() uint8 { return h.Type }
func (h *HeaderV1) DataLength() uint32 { return h.Length }
func (h *HeaderV1) DataCRC32() uint32 { return h.CRC32 }
func (h *HeaderV1) Version() Version { return ParseVersion(h.FirmwareVersion) }

// BlockTypeName returns "CPU" or "BLE" for known block types.
func (h *HeaderV1) BlockTypeName() string {
	switch h.Type {
	case 1:
		return "CPU"
	case 2:
		return "BLE"
	default:
		return ""
	}
}
