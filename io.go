// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	byteOrderBigEndian    = 0x4d4d
	byteOrderLittleEndian = 0x4949
	meaningOfLife         = 42

	// HeaderSize is the size of the container header:
	// byte order (2 bytes), magic number (2 bytes), IFD0 offset (4 bytes).
	HeaderSize = 8
)

var errShortRead = errors.New("short read")

// Internal error to signal that a stream operation failed.
// The cause is kept in streamState.err.
var errStop = errors.New("stop")

// streamState is shared by the reader and the writer.
// Reads and writes panic with errStop on failure; the exported entry points
// recover and return the underlying error.
type streamState struct {
	err error
}

func (s *streamState) stop(err error) {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		s.err = err
	}
	panic(errStop)
}

// recover must be deferred directly.
func (s *streamState) recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if r != errStop {
		panic(r)
	}
	if *errp == nil {
		*errp = s.err
	}
}

func newStreamReader(r io.ReadSeeker, byteOrder binary.ByteOrder) *streamReader {
	return &streamReader{
		r:         r,
		byteOrder: byteOrder,
	}
}

// streamReader is a wrapper around a ReadSeeker that provides methods to read binary data.
// Note that this is not thread safe.
type streamReader struct {
	streamState
	r         io.ReadSeeker
	byteOrder binary.ByteOrder

	buf []byte
}

func (e *streamReader) allocateBuf(length int) {
	if length > cap(e.buf) {
		e.buf = make([]byte, length)
	}
}

func (e *streamReader) pos() int64 {
	n, err := e.r.Seek(0, io.SeekCurrent)
	if err != nil {
		e.stop(err)
	}
	return n
}

func (e *streamReader) seek(pos int64) {
	if _, err := e.r.Seek(pos, io.SeekStart); err != nil {
		e.stop(err)
	}
}

func (e *streamReader) skip(n int64) {
	if _, err := e.r.Seek(n, io.SeekCurrent); err != nil {
		e.stop(err)
	}
}

func (e *streamReader) preservePos(f func() error) error {
	pos := e.pos()
	err := f()
	e.seek(pos)
	return err
}

func (e *streamReader) read1() uint8 {
	const n = 1
	e.readNIntoBuf(n)
	return e.buf[0]
}

func (e *streamReader) read1s() int8 {
	return int8(e.read1())
}

func (e *streamReader) read2() uint16 {
	const n = 2
	e.readNIntoBuf(n)
	return e.byteOrder.Uint16(e.buf[:n])
}

func (e *streamReader) read2s() int16 {
	return int16(e.read2())
}

func (e *streamReader) read4() uint32 {
	const n = 4
	e.readNIntoBuf(n)
	return e.byteOrder.Uint32(e.buf[:n])
}

func (e *streamReader) read4s() int32 {
	return int32(e.read4())
}

func (e *streamReader) read8() uint64 {
	const n = 8
	e.readNIntoBuf(n)
	return e.byteOrder.Uint64(e.buf[:n])
}

func (e *streamReader) readFloat32() float32 {
	return math.Float32frombits(e.read4())
}

func (e *streamReader) readFloat64() float64 {
	return math.Float64frombits(e.read8())
}

// readBytes reads n bytes into a new slice.
func (e *streamReader) readBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := io.ReadFull(e.r, b); err != nil {
		e.stop(err)
	}
	return b
}

func (e *streamReader) readNIntoBuf(n int) {
	if err := e.readNIntoBufE(n); err != nil {
		e.stop(err)
	}
}

func (e *streamReader) readNIntoBufE(n int) error {
	e.allocateBuf(n)
	n2, err := io.ReadFull(e.r, e.buf[:n])
	if err != nil {
		return err
	}
	if n != n2 {
		return errShortRead
	}
	return nil
}

func newStreamWriter(w io.WriteSeeker, byteOrder binary.ByteOrder) *streamWriter {
	return &streamWriter{
		w:         w,
		byteOrder: byteOrder,
	}
}

// streamWriter mirrors streamReader for writes.
// Note that this is not thread safe.
type streamWriter struct {
	streamState
	w         io.WriteSeeker
	byteOrder binary.ByteOrder

	buf [8]byte
}

func (e *streamWriter) pos() int64 {
	n, err := e.w.Seek(0, io.SeekCurrent)
	if err != nil {
		e.stop(err)
	}
	return n
}

func (e *streamWriter) seek(pos int64) {
	if _, err := e.w.Seek(pos, io.SeekStart); err != nil {
		e.stop(err)
	}
}

func (e *streamWriter) write(b []byte) {
	n, err := e.w.Write(b)
	if err != nil {
		e.stop(err)
	}
	if n != len(b) {
		e.stop(io.ErrShortWrite)
	}
}

func (e *streamWriter) write1(v uint8) {
	e.buf[0] = v
	e.write(e.buf[:1])
}

func (e *streamWriter) write1s(v int8) {
	e.write1(uint8(v))
}

func (e *streamWriter) write2(v uint16) {
	e.byteOrder.PutUint16(e.buf[:2], v)
	e.write(e.buf[:2])
}

func (e *streamWriter) write2s(v int16) {
	e.write2(uint16(v))
}

func (e *streamWriter) write4(v uint32) {
	e.byteOrder.PutUint32(e.buf[:4], v)
	e.write(e.buf[:4])
}

func (e *streamWriter) write4s(v int32) {
	e.write4(uint32(v))
}

func (e *streamWriter) write8(v uint64) {
	e.byteOrder.PutUint64(e.buf[:8], v)
	e.write(e.buf[:8])
}

func (e *streamWriter) writeFloat32(v float32) {
	e.write4(math.Float32bits(v))
}

func (e *streamWriter) writeFloat64(v float64) {
	e.write8(math.Float64bits(v))
}

func (e *streamWriter) pad(n int) {
	for i := 0; i < n; i++ {
		e.write1(0)
	}
}

// ReadHeader reads the container header at the start of r and returns the
// byte order and the offset of IFD0.
func ReadHeader(r io.ReadSeeker) (order binary.ByteOrder, ifd0 uint32, err error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	// The marker reads the same in both byte orders.
	switch marker := binary.BigEndian.Uint16(b[:2]); marker {
	case byteOrderBigEndian:
		order = binary.BigEndian
	case byteOrderLittleEndian:
		order = binary.LittleEndian
	default:
		return nil, 0, fmt.Errorf("%w: byte order marker 0x%04x", ErrInvalidHeader, marker)
	}

	if magic := order.Uint16(b[2:4]); magic != meaningOfLife {
		return nil, 0, fmt.Errorf("%w: magic number %d (0x%x)", ErrInvalidHeader, magic, magic)
	}

	ifd0 = order.Uint32(b[4:8])
	if ifd0 < HeaderSize {
		return nil, 0, fmt.Errorf("%w: IFD0 offset %d inside header", ErrInvalidHeader, ifd0)
	}

	return order, ifd0, nil
}

// WriteHeader writes a container header with the given byte order and IFD0 offset
// at the start of w.
func WriteHeader(w io.WriteSeeker, order binary.ByteOrder, ifd0 uint32) (err error) {
	s := newStreamWriter(w, order)
	defer s.recover(&err)

	s.seek(0)
	switch order {
	case binary.BigEndian:
		s.write([]byte("MM"))
	case binary.LittleEndian:
		s.write([]byte("II"))
	default:
		return fmt.Errorf("unsupported byte order %v", order)
	}
	s.write2(meaningOfLife)
	s.write4(ifd0)

	return nil
}
