// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
)

const (
	// Size of the entry count and of the next directory pointer.
	dirCountSize = 2
	dirNextSize  = 4

	// A directory entry is represented in 12 bytes:
	//   - 2 bytes for the tag ID
	//   - 2 bytes for the data type
	//   - 4 bytes for the number of values of the specified type
	//   - 4 bytes for the values themselves, if they fit, otherwise for the
	//     absolute offset of the values.
	entrySize = 12

	// 10 MB should be plenty for a single metadata value.
	maxValueSize = 10 * 1024 * 1024
)

// Entry is a single directory entry.
type Entry struct {
	Tag   uint16
	Type  Type
	Count uint32

	// Values is nil if the entry could not be decoded.
	Values Values
}

// NewEntry creates an entry with Count set from v.
func NewEntry(tag uint16, typ Type, v Values) Entry {
	return Entry{Tag: tag, Type: typ, Count: uint32(v.Len()), Values: v}
}

// NewASCIIEntry creates a NUL terminated ASCII entry.
func NewASCIIEntry(tag uint16, s string) Entry {
	return NewEntry(tag, TypeASCII, Bytes(s+"\x00"))
}

// byteLen returns the size of the entry's values in bytes.
func (e Entry) byteLen() uint64 {
	size, _ := e.Type.Size()
	return uint64(size) * uint64(e.Count)
}

// IsInline reports whether the values are stored in the entry record itself.
func (e Entry) IsInline() bool {
	return e.byteLen() <= 4
}

// ASCII returns the value of an ASCII entry without its NUL terminator.
func (e Entry) ASCII() string {
	b, ok := e.Values.(Bytes)
	if !ok {
		return ""
	}
	return string(trimBytesNulls(b))
}

// Offsets returns the values of an entry that points to other directories.
func (e Entry) Offsets() ([]uint32, bool) {
	switch v := e.Values.(type) {
	case Longs:
		return v, len(v) > 0
	case Shorts:
		offsets := make([]uint32, len(v))
		for i, o := range v {
			offsets[i] = uint32(o)
		}
		return offsets, len(v) > 0
	default:
		return nil, false
	}
}

// String formats the entry's values.
func (e Entry) String() string {
	if e.Values == nil {
		return "<undecoded>"
	}
	if e.Type == TypeASCII {
		return fmt.Sprintf("%q", printableString(e.ASCII()))
	}
	const limit = 16
	var sb strings.Builder
	n := e.Values.Len()
	for i := 0; i < n && i < limit; i++ {
		if i > 0 {
			sb.WriteString(" ")
		}
		switch v := e.Values.(type) {
		case Bytes:
			fmt.Fprintf(&sb, "%d", v[i])
		case SBytes:
			fmt.Fprintf(&sb, "%d", v[i])
		case Shorts:
			fmt.Fprintf(&sb, "%d", v[i])
		case SShorts:
			fmt.Fprintf(&sb, "%d", v[i])
		case Longs:
			fmt.Fprintf(&sb, "%d", v[i])
		case SLongs:
			fmt.Fprintf(&sb, "%d", v[i])
		case Floats:
			fmt.Fprintf(&sb, "%g", v[i])
		case Doubles:
			fmt.Fprintf(&sb, "%g", v[i])
		case Rationals:
			sb.WriteString(v[i].String())
		case SRationals:
			sb.WriteString(v[i].String())
		}
	}
	if n > limit {
		fmt.Fprintf(&sb, " ... (%d values)", n)
	}
	return sb.String()
}

func (e Entry) validate() error {
	if _, ok := e.Type.Size(); !ok {
		return fmt.Errorf("%w: tag 0x%04x: unknown type %s", ErrUnencodable, e.Tag, e.Type)
	}
	if e.Values == nil {
		return fmt.Errorf("%w: tag 0x%04x: no values", ErrUnencodable, e.Tag)
	}
	if !e.Type.holds(e.Values) {
		return fmt.Errorf("%w: tag 0x%04x: %T cannot hold type %s", ErrUnencodable, e.Tag, e.Values, e.Type)
	}
	if uint64(e.Values.Len()) != uint64(e.Count) {
		return fmt.Errorf("%w: tag 0x%04x: count %d, got %d values", ErrUnencodable, e.Tag, e.Count, e.Values.Len())
	}
	if e.byteLen() > maxValueSize {
		return fmt.Errorf("%w: tag 0x%04x: %d bytes exceeds max %d", ErrUnencodable, e.Tag, e.byteLen(), maxValueSize)
	}
	return nil
}

// Directory is an Image File Directory (IFD).
type Directory struct {
	// Entries in file order.
	Entries []Entry

	// Next is the offset of the next directory in the chain, 0 if none.
	Next uint32

	// The fields below are set by LoadDirectory.

	// Offset is where the directory was read from.
	Offset uint32

	// Span is the number of bytes from Offset that this directory owns:
	// the directory block and any out-of-line values stored directly after
	// it, word aligned. A replacement directory must fit in Span.
	Span uint32

	// Corrupt holds the entry-scoped decode errors, if any.
	// Each error matches ErrCorruptDirectory.
	Corrupt error
}

// Find returns the first entry with the given tag, or nil if not found.
func (d *Directory) Find(tag uint16) *Entry {
	for i := range d.Entries {
		if d.Entries[i].Tag == tag {
			return &d.Entries[i]
		}
	}
	return nil
}

func blockSize(numEntries int) uint32 {
	return dirCountSize + uint32(numEntries)*entrySize + dirNextSize
}

// EncodedSize returns the number of bytes StoreDirectory writes for d:
// the directory block followed by the word aligned out-of-line values.
func (d *Directory) EncodedSize() uint32 {
	size := blockSize(len(d.Entries))
	for _, e := range d.Entries {
		if n := e.byteLen(); n > 4 {
			size += alignWord(uint32(n))
		}
	}
	return size
}

// LoadDirectory decodes the directory at offset in r.
//
// Entries that cannot be decoded are kept with nil Values and reported in
// Directory.Corrupt; the returned error is only set for stream failures.
func LoadDirectory(r io.ReadSeeker, order binary.ByteOrder, offset uint32) (dir *Directory, err error) {
	d := &directoryDecoder{streamReader: newStreamReader(r, order)}
	defer d.recover(&err)
	return d.decode(offset), nil
}

type extent struct {
	offset uint32
	length uint32
}

type directoryDecoder struct {
	*streamReader
}

func (d *directoryDecoder) decode(offset uint32) *Directory {
	d.seek(int64(offset))
	numEntries := int(d.read2())

	dir := &Directory{
		Offset:  offset,
		Entries: make([]Entry, 0, numEntries),
	}

	var corrupt *multierror.Error
	var extents []extent

	for i := 0; i < numEntries; i++ {
		entry, ext, err := d.decodeEntry()
		if err != nil {
			corrupt = multierror.Append(corrupt, err)
		}
		if ext.length > 0 {
			extents = append(extents, ext)
		}
		dir.Entries = append(dir.Entries, entry)
	}

	dir.Next = d.read4()
	dir.Span = ownedSpan(offset, blockSize(numEntries), extents)
	dir.Corrupt = corrupt.ErrorOrNil()

	return dir
}

// decodeEntry leaves the stream positioned at the next entry record.
func (d *directoryDecoder) decodeEntry() (Entry, extent, error) {
	entryPos := d.pos()

	entry := Entry{
		Tag:   d.read2(),
		Type:  Type(d.read2()),
		Count: d.read4(),
	}

	if _, ok := entry.Type.Size(); !ok {
		d.skip(4)
		return entry, extent{}, newCorruptDirectoryErrorf(entry.Tag, entry.Type, entryPos, "unknown type")
	}

	valLen := entry.byteLen()
	if valLen > maxValueSize {
		d.skip(4)
		return entry, extent{}, newCorruptDirectoryErrorf(entry.Tag, entry.Type, entryPos, "value length %d exceeds max %d", valLen, maxValueSize)
	}

	if valLen <= 4 {
		entry.Values = d.readValues(entry.Type, entry.Count)
		if padding := 4 - valLen; padding > 0 {
			d.skip(int64(padding))
		}
		return entry, extent{}, nil
	}

	valueOffset := d.read4()
	ext := extent{offset: valueOffset, length: uint32(valLen)}
	resume := d.pos()

	var values Values
	err := d.try(func() {
		d.seek(int64(valueOffset))
		values = d.readValues(entry.Type, entry.Count)
	})
	d.seek(resume)
	if err != nil {
		return entry, ext, newCorruptDirectoryErrorf(entry.Tag, entry.Type, entryPos, "values at offset %d: %v", valueOffset, err)
	}
	entry.Values = values

	return entry, ext, nil
}

// try runs f and returns the stream error that stopped it, if any.
func (d *directoryDecoder) try(f func()) (err error) {
	d.err = nil
	defer d.recover(&err)
	f()
	return nil
}

func (d *directoryDecoder) readValues(typ Type, count uint32) Values {
	n := int(count)
	switch typ {
	case TypeByte, TypeASCII, TypeUndefined:
		return Bytes(d.readBytes(n))
	case TypeSByte:
		v := make(SBytes, n)
		for i := range v {
			v[i] = d.read1s()
		}
		return v
	case TypeShort:
		v := make(Shorts, n)
		for i := range v {
			v[i] = d.read2()
		}
		return v
	case TypeSShort:
		v := make(SShorts, n)
		for i := range v {
			v[i] = d.read2s()
		}
		return v
	case TypeLong, TypeIFD:
		v := make(Longs, n)
		for i := range v {
			v[i] = d.read4()
		}
		return v
	case TypeSLong:
		v := make(SLongs, n)
		for i := range v {
			v[i] = d.read4s()
		}
		return v
	case TypeFloat:
		v := make(Floats, n)
		for i := range v {
			v[i] = d.readFloat32()
		}
		return v
	case TypeDouble:
		v := make(Doubles, n)
		for i := range v {
			v[i] = d.readFloat64()
		}
		return v
	case TypeRational:
		v := make(Rationals, n)
		for i := range v {
			num, den := d.read4(), d.read4()
			v[i] = NewRat(num, den)
		}
		return v
	case TypeSRational:
		v := make(SRationals, n)
		for i := range v {
			num, den := d.read4s(), d.read4s()
			v[i] = NewRat(num, den)
		}
		return v
	default:
		panic(fmt.Sprintf("unhandled type %s", typ))
	}
}

// ownedSpan returns the contiguous region starting at offset that holds the
// directory block plus the out-of-line values laid out right after it.
// Values stored elsewhere in the file are not part of the span.
func ownedSpan(offset, block uint32, extents []extent) uint32 {
	slices.SortFunc(extents, func(a, b extent) int {
		return int(int64(a.offset) - int64(b.offset))
	})

	start := uint64(offset)
	end := start + uint64(block)
	for _, x := range extents {
		// Values overlapping the block are corrupt pointers.
		xstart := uint64(x.offset)
		if xstart < start+uint64(block) {
			continue
		}
		if xstart > uint64(alignWord(uint32(end))) {
			break
		}
		if xend := xstart + uint64(x.length); xend > end {
			end = xend
		}
	}

	return alignWord(uint32(end - start))
}

// StoreDirectory encodes dir at offset in w, overwriting what is there.
//
// The directory block is written first, followed by the out-of-line values
// in entry order, each padded to an even length. If maxSpan is > 0 and the
// encoded directory is larger than maxSpan, ErrWriteOverflow is returned
// and nothing is written.
func StoreDirectory(w io.WriteSeeker, order binary.ByteOrder, offset uint32, dir *Directory, maxSpan uint32) (err error) {
	if len(dir.Entries) > 0xffff {
		return fmt.Errorf("%w: %d entries", ErrUnencodable, len(dir.Entries))
	}
	for _, entry := range dir.Entries {
		if err := entry.validate(); err != nil {
			return err
		}
	}

	size := dir.EncodedSize()
	if maxSpan > 0 && size > maxSpan {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrWriteOverflow, size, offset, maxSpan)
	}

	e := &directoryEncoder{streamWriter: newStreamWriter(w, order)}
	defer e.recover(&err)

	e.encode(offset, dir)

	return nil
}

type directoryEncoder struct {
	*streamWriter
}

func (e *directoryEncoder) encode(offset uint32, dir *Directory) {
	e.seek(int64(offset))
	e.write2(uint16(len(dir.Entries)))

	valuePos := offset + blockSize(len(dir.Entries))

	for _, entry := range dir.Entries {
		e.write2(entry.Tag)
		e.write2(uint16(entry.Type))
		e.write4(entry.Count)

		n := uint32(entry.byteLen())
		if n <= 4 {
			e.writeValues(entry.Values)
			e.pad(int(4 - n))
			continue
		}

		e.write4(valuePos)
		resume := e.pos()
		e.seek(int64(valuePos))
		e.writeValues(entry.Values)
		if n%2 == 1 {
			e.pad(1)
		}
		valuePos += alignWord(n)
		e.seek(resume)
	}

	e.write4(dir.Next)
}

func (e *directoryEncoder) writeValues(values Values) {
	switch v := values.(type) {
	case Bytes:
		e.write(v)
	case SBytes:
		for _, x := range v {
			e.write1s(x)
		}
	case Shorts:
		for _, x := range v {
			e.write2(x)
		}
	case SShorts:
		for _, x := range v {
			e.write2s(x)
		}
	case Longs:
		for _, x := range v {
			e.write4(x)
		}
	case SLongs:
		for _, x := range v {
			e.write4s(x)
		}
	case Floats:
		for _, x := range v {
			e.writeFloat32(x)
		}
	case Doubles:
		for _, x := range v {
			e.writeFloat64(x)
		}
	case Rationals:
		for _, x := range v {
			e.write4(x.Num())
			e.write4(x.Den())
		}
	case SRationals:
		for _, x := range v {
			e.write4s(x.Num())
			e.write4s(x.Den())
		}
	default:
		panic(fmt.Sprintf("unhandled values %T", values))
	}
}
