package scan

import (
	"errors"
	"io"

	"fwinfo/pkg/checksum"
	"fwinfo/pkg/firmware"
)

// v1Block builds a V1 block with a correct CRC-32 for payload.
func v1Block(typ uint8, payload []byte) []byte {
	hdr := &firmware.HeaderV1{
		Sig:             firmware.SignatureV1,
		Type:            typ,
		Length:          uint32(len(payload)),
		CRC32:           checksum.ComputeCRC32(payload),
		FirmwareVersion: 0x01020003,
	}
	return append(hdr.Marshal(), payload...)
}

// v2Block builds a V2 block with a correct CRC-32 and header checksum.
func v2Block(typ uint8, payload []byte) []byte {
	hdr := &firmware.HeaderV2{
		Sig:              firmware.SignatureV2,
		Type:             typ,
		HardwareRevision: 2,
		FirmwareVersion:  0x02000010,
		CRC32:            checksum.ComputeCRC32(payload),
		Length:           uint32(len(payload)),
		DeviceType:       5,
	}
	hdr.Checksum = hdr.ComputeChecksum()
	return append(hdr.Marshal(), payload...)
}

func payload(n int, seed byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = seed + byte(i*7)
	}
	return p
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// memFile is an in-memory io.ReadWriteSeeker that counts writes.
type memFile struct {
	data      []byte
	pos       int64
	writes    int
	failWrite bool
}

func newMemFile(data []byte) *memFile {
	return &memFile{data: append([]byte(nil), data...)}
}

func (m *memFile) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memFile) Write(p []byte) (int, error) {
	if m.failWrite {
		return 0, errors.New("write protected")
	}
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		m.data = append(m.data, make([]byte, end-int64(len(m.data)))...)
	}
	copy(m.data[m.pos:], p)
	m.pos = end
	m.writes++
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += m.pos
	case io.SeekEnd:
		offset += int64(len(m.data))
	}
	if offset < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = offset
	return offset, nil
}

// recorder keeps everything a walker reports.
type recorder struct {
	blocks []*Block
	faults []*Fault
}

func (r *recorder) Block(b *Block) { r.blocks = append(r.blocks, b) }
func (r *recorder) Fault(f *Fault) { r.faults = append(r.faults, f) }

type byteCounter struct{ n int64 }

func (c *byteCounter) Update(n int64) { c.n += n }
