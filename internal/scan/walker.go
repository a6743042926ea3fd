// Package scan walks a firmware image block by block, verifies each block
// against its header and optionally rewrites broken headers.
package scan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"fwinfo/internal/logging"
	"fwinfo/internal/repair"
	"fwinfo/pkg/checksum"
	"fwinfo/pkg/firmware"
)

// ErrNotWritable is returned when repair is requested on a read-only handle.
var ErrNotWritable = errors.New("scan: repair requested but file is not writable")

// ErrBackupFailed wraps the error of a BeforeWrite hook. No header has been
// written when it is returned.
var ErrBackupFailed = errors.New("scan: backup before repair failed")

// Options configures a Walker.
type Options struct {
	// Repair rewrites headers whose CRC, length or header checksum is wrong
	Repair bool

	// Policy decides which fields a repair touches
	Policy repair.Policy

	// BufferSize is the payload read buffer size in bytes
	BufferSize int64
}

// ProgressSink is told how many bytes each step consumed.
type ProgressSink interface {
	Update(n int64)
}

// Option is a functional option for configuring the Walker.
type Option func(*Walker)

// WithLogger sets the diagnostic logger.
func WithLogger(log *slog.Logger) Option {
	return func(w *Walker) {
		if log != nil {
			w.log = log
		}
	}
}

// WithProgress sets a sink for scanned byte counts.
func WithProgress(p ProgressSink) Option {
	return func(w *Walker) {
		w.progress = p
	}
}

// WithBeforeWrite sets a hook that runs once per Walk, just before the first
// header rewrite. Callers use it to back the file up only when a repair is
// actually about to change it.
func WithBeforeWrite(fn func() error) Option {
	return func(w *Walker) {
		w.beforeWrite = fn
	}
}

// Walker scans one firmware image at a time. It is not safe for concurrent use.
type Walker struct {
	opts     Options
	calc     *checksum.Calculator
	reporter Reporter
	log      *slog.Logger
	progress ProgressSink

	beforeWrite func() error
	wrote       bool
}

// New creates a Walker that sends its findings to reporter.
func New(reporter Reporter, opts Options, options ...Option) *Walker {
	w := &Walker{
		opts:     opts,
		calc:     checksum.NewCalculator(opts.BufferSize),
		reporter: reporter,
		log:      logging.Discard(),
	}
	for _, o := range options {
		o(w)
	}
	return w
}

// Walk scans f from offset 0 to the end.
//
// Integrity mismatches and structural faults are reported and reflected in the
// Result; they are not errors. Walk returns an error only when the format
// cannot be identified (firmware.ErrNoHeader, *firmware.UnknownSignatureError),
// when reading fails, or when a repair write fails (*repair.Error). After a
// repair error the file is in an unknown state and the caller must stop.
func (w *Walker) Walk(f io.ReadSeeker) (*Result, error) {
	var out io.WriteSeeker
	if w.opts.Repair {
		ws, ok := f.(io.WriteSeeker)
		if !ok {
			return nil, ErrNotWritable
		}
		out = ws
	}

	w.wrote = false
	format, err := w.probe(f)
	if err != nil {
		return nil, err
	}
	w.log.Debug("firmware format detected", "format", format.String())

	res := &Result{Format: format, State: scanningState(format)}
	buf := make([]byte, format.HeaderSize())
	var offset int64
	for res.State == ScanningV1 || res.State == ScanningV2 {
		offset, err = w.step(f, out, format, buf, offset, res)
		if err != nil {
			return res, err
		}
	}

	w.log.Debug("scan finished",
		"state", res.State.String(),
		"blocks", res.Blocks,
		"mismatches", res.Mismatches,
		"repaired", res.Repaired)
	return res, nil
}

// probe reads the first header-sized window, identifies the format and
// rewinds to offset 0.
func (w *Walker) probe(f io.ReadSeeker) (firmware.Format, error) {
	probe := make([]byte, firmware.ProbeSize)
	n, err := io.ReadFull(f, probe)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return firmware.FormatUnknown, fmt.Errorf("error reading firmware block header: %w", err)
	}

	format, err := firmware.Detect(probe[:n])
	if err != nil {
		return firmware.FormatUnknown, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return firmware.FormatUnknown, fmt.Errorf("error rewinding firmware file: %w", err)
	}
	return format, nil
}

// step processes the block at offset and returns the offset of the next one.
func (w *Walker) step(f io.Reader, out io.WriteSeeker, format firmware.Format, buf []byte, offset int64, res *Result) (int64, error) {
	n, err := io.ReadFull(f, buf)
	w.consumed(res, int64(n))
	switch {
	case n == 0 && errors.Is(err, io.EOF):
		res.State = StoppedClean
		return offset, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		w.reporter.Fault(&Fault{Kind: FaultIncompleteHeader, Format: format, Offset: offset, Got: n})
		res.State = StoppedError
		return offset, nil
	case err != nil:
		return offset, fmt.Errorf("error reading block header at 0x%06X: %w", offset, err)
	}

	hdr, err := firmware.Decode(format, buf)
	if err != nil {
		return offset, err
	}
	if !hdr.ValidSignature() {
		w.reporter.Fault(&Fault{Kind: FaultBadSignature, Format: format, Offset: offset, Signature: hdr.Signature()})
		res.State = StoppedError
		return offset, nil
	}

	block := &Block{
		Index:  res.Blocks,
		Offset: offset,
		Header: hdr,
		Raw:    append([]byte(nil), buf...),
	}
	if v2, ok := hdr.(*firmware.HeaderV2); ok {
		block.ComputedChecksum = v2.ComputeChecksum()
	}

	block.ObservedCRC, block.ObservedLength, err = w.calc.CRC32(f, hdr.DataLength())
	w.consumed(res, int64(block.ObservedLength))
	if err != nil {
		return offset, fmt.Errorf("error reading block data at 0x%06X: %w", block.DataOffset(), err)
	}

	var repairErr error
	if w.opts.Repair && block.HasMismatch() {
		repairErr = w.repair(out, block)
		if block.Repair.Written {
			res.Repaired++
		}
	}

	res.Blocks++
	if block.HasMismatch() {
		res.Mismatches++
	}
	w.reporter.Block(block)
	if repairErr != nil {
		return offset, repairErr
	}

	if block.Shortfall() {
		w.log.Debug("block data truncated, stopping",
			"offset", offset,
			"declared", hdr.DataLength(),
			"observed", block.ObservedLength)
		res.State = StoppedError
	}
	return block.DataOffset() + int64(block.ObservedLength), nil
}

func (w *Walker) repair(out io.WriteSeeker, block *Block) error {
	fixed := repair.Correct(block.Header, block.ObservedCRC, block.ObservedLength, w.opts.Policy)
	block.Repair = &RepairOutcome{Header: fixed}

	data := fixed.Marshal()
	if bytes.Equal(data, block.Raw) {
		w.log.Info("block header already consistent, nothing written", "offset", block.Offset)
		return nil
	}

	if !w.wrote && w.beforeWrite != nil {
		if err := w.beforeWrite(); err != nil {
			err = fmt.Errorf("%w: %w", ErrBackupFailed, err)
			block.Repair.Err = err
			w.log.Error("backup before repair failed, nothing written", "offset", block.Offset, "error", err)
			return err
		}
	}
	w.wrote = true

	if err := repair.RewriteHeader(out, data, block.Offset); err != nil {
		block.Repair.Err = err
		w.log.Error("block header rewrite failed", "offset", block.Offset, "error", err)
		return err
	}
	block.Repair.Written = true
	w.log.Info("block header rewritten", "offset", block.Offset, "crc32", fmt.Sprintf("0x%08X", fixed.DataCRC32()))
	return nil
}

func (w *Walker) consumed(res *Result, n int64) {
	res.BytesScanned += n
	if w.progress != nil && n > 0 {
		w.progress.Update(n)
	}
}
