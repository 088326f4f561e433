// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"encoding/binary"
	"fmt"
	"io"
	"path"

	"github.com/hashicorp/go-multierror"
)

type pointerKind struct {
	namespace string
	// multiple pointers, one directory per value.
	multiple bool
}

// Tags whose values are offsets of other directories.
var pointerTags = map[uint16]pointerKind{
	tagExifIFDPointer:    {namespace: namespaceExifIFD},
	tagGPSInfoIFDPointer: {namespace: namespaceGPSInfoIFD},
	tagInteropIFDPointer: {namespace: namespaceInteropIFD},
	tagSubIFDs:           {namespace: namespaceSubIFD, multiple: true},
}

// NamedDirectory is a directory with its namespace, e.g. "IFD0/ExifIFD".
type NamedDirectory struct {
	Namespace string
	*Directory
}

// Layout is the directory structure of a file.
type Layout struct {
	Order binary.ByteOrder
	IFD0  uint32

	// Dirs in the order they were visited.
	Dirs []NamedDirectory
}

// Find returns the directory with the given namespace, or nil if not found.
func (l *Layout) Find(namespace string) *Directory {
	for _, d := range l.Dirs {
		if d.Namespace == namespace {
			return d.Directory
		}
	}
	return nil
}

// GPS returns the GPS directory referenced from IFD0, or nil if there is none.
func (l *Layout) GPS() *Directory {
	return l.Find(namespaceGPSInfoIFDPath)
}

// Corrupt returns all entry decode errors in the layout, or nil.
func (l *Layout) Corrupt() error {
	var merr *multierror.Error
	for _, d := range l.Dirs {
		if d.Corrupt != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", d.Namespace, d.Corrupt))
		}
	}
	return merr.ErrorOrNil()
}

// LatLong returns the position stored in the GPS directory in decimal degrees.
func (l *Layout) LatLong() (lat, long float64, err error) {
	gps := l.GPS()
	if gps == nil {
		return 0, 0, ErrNoGPSDirectory
	}
	lat, err = gpsDegrees(gps, tagGPSLatitude, tagGPSLatitudeRef, "S")
	if err != nil {
		return 0, 0, err
	}
	long, err = gpsDegrees(gps, tagGPSLongitude, tagGPSLongitudeRef, "W")
	if err != nil {
		return 0, 0, err
	}
	return lat, long, nil
}

func gpsDegrees(gps *Directory, tag, refTag uint16, negativeRef string) (float64, error) {
	e := gps.Find(tag)
	if e == nil {
		return 0, fmt.Errorf("%s not found", fieldsGPS[tag])
	}
	rats, ok := e.Values.(Rationals)
	if !ok {
		return 0, fmt.Errorf("%s: unexpected type %s", fieldsGPS[tag], e.Type)
	}
	d, err := toDegrees([]Rat[uint32](rats))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", fieldsGPS[tag], err)
	}
	if ref := gps.Find(refTag); ref != nil && ref.ASCII() == negativeRef {
		d = -d
	}
	return d, nil
}

// Walk decodes IFD0 at offset ifd0, the chain of directories linked from it
// (IFD1, IFD2, ...) and every directory reachable through the Exif, GPS,
// interoperability and SubIFDs pointer tags.
//
// A directory that is referenced twice is reported as an error.
func Walk(r io.ReadSeeker, order binary.ByteOrder, ifd0 uint32) (*Layout, error) {
	w := &walker{
		r:       r,
		layout:  &Layout{Order: order, IFD0: ifd0},
		visited: make(map[uint32]string),
	}

	offset := ifd0
	for i := 0; offset != 0; i++ {
		dir, err := w.load(fmt.Sprintf("IFD%d", i), offset)
		if err != nil {
			return nil, err
		}
		offset = dir.Next
	}

	return w.layout, nil
}

// ReadLayout reads the header of r and walks its directories.
func ReadLayout(r io.ReadSeeker) (*Layout, error) {
	order, ifd0, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	return Walk(r, order, ifd0)
}

type walker struct {
	r       io.ReadSeeker
	layout  *Layout
	visited map[uint32]string
}

func (w *walker) load(namespace string, offset uint32) (*Directory, error) {
	if prev, seen := w.visited[offset]; seen {
		return nil, fmt.Errorf("%w: %s at offset %d already loaded as %s", ErrCorruptDirectory, namespace, offset, prev)
	}
	w.visited[offset] = namespace

	dir, err := LoadDirectory(w.r, w.layout.Order, offset)
	if err != nil {
		return nil, fmt.Errorf("%s at offset %d: %w", namespace, offset, err)
	}
	w.layout.Dirs = append(w.layout.Dirs, NamedDirectory{Namespace: namespace, Directory: dir})

	for _, entry := range dir.Entries {
		kind, ok := pointerTags[entry.Tag]
		if !ok {
			continue
		}
		offsets, ok := entry.Offsets()
		if !ok {
			continue
		}
		for i, offset := range offsets {
			if offset == 0 {
				continue
			}
			name := kind.namespace
			if kind.multiple {
				name = fmt.Sprintf("%s%d", name, i)
			}
			if _, err := w.load(path.Join(namespace, name), offset); err != nil {
				return nil, err
			}
		}
	}

	return dir, nil
}

// Dump writes a listing of every directory and entry in l to w.
func (l *Layout) Dump(w io.Writer) error {
	for _, d := range l.Dirs {
		if _, err := fmt.Fprintf(w, "%s at %d, %d entries, span %d, next %d\n", d.Namespace, d.Offset, len(d.Entries), d.Span, d.Next); err != nil {
			return err
		}
		for _, e := range d.Entries {
			if _, err := fmt.Fprintf(w, "  0x%04x %-28s %s[%d] %s\n", e.Tag, TagName(d.Namespace, e.Tag), e.Type, e.Count, e); err != nil {
				return err
			}
		}
	}
	return nil
}
