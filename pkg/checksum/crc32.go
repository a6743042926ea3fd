// Package checksum implements the block payload CRC-32 and the version-2
// header checksum used by firmware images.
package checksum

import (
	"errors"
	"io"
)

// CRC-32 parameters (reflected CRC-32/ISO-HDLC).
const (
	// CRC32Polynomial is the reversed IEEE 802.3 polynomial
	CRC32Polynomial = 0xEDB88320

	// CRC32InitialValue seeds every computation
	CRC32InitialValue = 0xFFFFFFFF

	// DefaultBlockSize is the read buffer used when none is configured
	DefaultBlockSize = 4096
)

// Table is a 256-entry lookup table for the byte-wise CRC-32 update.
type Table [256]uint32

// BuildTable precomputes the lookup table for CRC32Polynomial.
func BuildTable() *Table {
	var t Table
	for i := range t {
		crc := uint32(i)
		for j := 0; j < 8; j++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ CRC32Polynomial
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}
	return &t
}

// Update feeds data into a running (non-inverted) CRC value.
func (t *Table) Update(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = t[(crc^uint32(b))&0xFF] ^ (crc >> 8)
	}
	return crc
}

// Calculator computes payload checksums over a stream using a fixed-size
// read buffer.
type Calculator struct {
	table     *Table
	blockSize int64
	buf       []byte
}

// NewCalculator creates a new checksum calculator with specified block size
func NewCalculator(blockSize int64) *Calculator {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Calculator{
		table:     BuildTable(),
		blockSize: blockSize,
	}
}

// BlockSize returns the read buffer size in bytes.
func (c *Calculator) BlockSize() int64 {
	return c.blockSize
}

// CRC32 computes the CRC-32 of at most limit bytes read from r.
//
// The stream may end early; n reports how many bytes were actually consumed
// and crc covers exactly those bytes. Exactly n bytes are taken from r, so a
// file cursor behind r ends up right after the consumed data. Any read error
// other than io.EOF is returned together with the partial result.
func (c *Calculator) CRC32(r io.Reader, limit uint32) (crc uint32, n uint32, err error) {
	if c.buf == nil {
		c.buf = make([]byte, c.blockSize)
	}

	crc = CRC32InitialValue
	lr := io.LimitReader(r, int64(limit))
	for {
		read, rerr := lr.Read(c.buf)
		if read > 0 {
			crc = c.table.Update(crc, c.buf[:read])
			n += uint32(read)
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				err = rerr
			}
			break
		}
	}
	return ^crc, n, err
}

// ComputeCRC32 computes the CRC-32 of an in-memory buffer.
func ComputeCRC32(data []byte) uint32 {
	return ^defaultTable.Update(CRC32InitialValue, data)
}

var defaultTable = BuildTable()
