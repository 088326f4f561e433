// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag_test

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/bep/geotag"
	"github.com/hashicorp/go-multierror"

	qt "github.com/frankban/quicktest"
)

const (
	tagSubIFDs           = 0x014a
	tagInteropIFDPointer = 0xa005
)

type layoutFile struct {
	*memFile
	offsets map[string]uint32
}

// newLayoutFile writes a file with IFD0 -> IFD1, two SubIFDs, an Exif
// directory with an interoperability directory, and a GPS directory.
func newLayoutFile(c *qt.C, order binary.ByteOrder) *layoutFile {
	ifd0 := &geotag.Directory{
		Entries: []geotag.Entry{
			geotag.NewEntry(0x0100, geotag.TypeLong, geotag.Longs{4000}),
			geotag.NewEntry(tagSubIFDs, geotag.TypeLong, geotag.Longs{0, 0}),
			geotag.NewEntry(tagExifIFDPointer, geotag.TypeLong, geotag.Longs{0}),
			geotag.NewEntry(tagGPSInfoIFDPointer, geotag.TypeLong, geotag.Longs{0}),
		},
	}
	sub0 := &geotag.Directory{Entries: []geotag.Entry{geotag.NewEntry(0x0100, geotag.TypeShort, geotag.Shorts{160})}}
	sub1 := &geotag.Directory{Entries: []geotag.Entry{geotag.NewEntry(0x0100, geotag.TypeShort, geotag.Shorts{1600})}}
	exifDir := &geotag.Directory{
		Entries: []geotag.Entry{
			geotag.NewEntry(0x829a, geotag.TypeRational, geotag.Rationals{geotag.NewRat[uint32](1, 250)}),
			geotag.NewASCIIEntry(tagDateTimeOriginal, "2009:03:28 14:03:07"),
			geotag.NewEntry(tagInteropIFDPointer, geotag.TypeLong, geotag.Longs{0}),
		},
	}
	interop := &geotag.Directory{Entries: []geotag.Entry{geotag.NewASCIIEntry(0x0001, "R98")}}
	gps := geotag.SynthesizeGPS(testRecord(testTime), 0)
	ifd1 := &geotag.Directory{Entries: []geotag.Entry{geotag.NewEntry(0x0103, geotag.TypeShort, geotag.Shorts{6})}}

	offsets := make(map[string]uint32)
	offset := uint32(geotag.HeaderSize)
	for _, d := range []struct {
		name string
		dir  *geotag.Directory
	}{
		{"IFD0", ifd0},
		{"IFD0/SubIFD0", sub0},
		{"IFD0/SubIFD1", sub1},
		{"IFD0/ExifIFD", exifDir},
		{"IFD0/ExifIFD/InteroperabilityIFD", interop},
		{"IFD0/GPSInfoIFD", gps},
		{"IFD1", ifd1},
	} {
		offsets[d.name] = offset
		offset += d.dir.EncodedSize()
	}

	ifd0.Next = offsets["IFD1"]
	ifd0.Find(tagSubIFDs).Values = geotag.Longs{offsets["IFD0/SubIFD0"], offsets["IFD0/SubIFD1"]}
	ifd0.Find(tagExifIFDPointer).Values = geotag.Longs{offsets["IFD0/ExifIFD"]}
	ifd0.Find(tagGPSInfoIFDPointer).Values = geotag.Longs{offsets["IFD0/GPSInfoIFD"]}
	exifDir.Find(tagInteropIFDPointer).Values = geotag.Longs{offsets["IFD0/ExifIFD/InteroperabilityIFD"]}

	f := &memFile{}
	c.Assert(geotag.WriteHeader(f, order, offsets["IFD0"]), qt.IsNil)
	for name, dir := range map[string]*geotag.Directory{
		"IFD0":                             ifd0,
		"IFD0/SubIFD0":                     sub0,
		"IFD0/SubIFD1":                     sub1,
		"IFD0/ExifIFD":                     exifDir,
		"IFD0/ExifIFD/InteroperabilityIFD": interop,
		"IFD0/GPSInfoIFD":                  gps,
		"IFD1":                             ifd1,
	} {
		c.Assert(geotag.StoreDirectory(f, order, offsets[name], dir, 0), qt.IsNil)
	}

	return &layoutFile{memFile: f, offsets: offsets}
}

func namespaces(l *geotag.Layout) []string {
	var ns []string
	for _, d := range l.Dirs {
		ns = append(ns, d.Namespace)
	}
	return ns
}

func TestWalk(t *testing.T) {
	c := qt.New(t)

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		c.Run(order.String(), func(c *qt.C) {
			f := newLayoutFile(c, order)

			layout, err := geotag.ReadLayout(f)
			c.Assert(err, qt.IsNil)
			c.Assert(layout.Order, qt.Equals, order)
			c.Assert(layout.IFD0, qt.Equals, uint32(geotag.HeaderSize))
			c.Assert(namespaces(layout), qt.DeepEquals, []string{
				"IFD0",
				"IFD0/SubIFD0",
				"IFD0/SubIFD1",
				"IFD0/ExifIFD",
				"IFD0/ExifIFD/InteroperabilityIFD",
				"IFD0/GPSInfoIFD",
				"IFD1",
			})
			for _, d := range layout.Dirs {
				c.Assert(d.Offset, qt.Equals, f.offsets[d.Namespace], qt.Commentf(d.Namespace))
			}
			c.Assert(layout.Corrupt(), qt.IsNil)

			c.Assert(layout.Find("IFD0/SubIFD1").Find(0x0100).Values, qt.DeepEquals, geotag.Values(geotag.Shorts{1600}))
			c.Assert(layout.Find("IFD0/ExifIFD/InteroperabilityIFD").Find(0x0001).ASCII(), qt.Equals, "R98")
			c.Assert(layout.Find("IFD2"), qt.IsNil)

			gps := layout.GPS()
			c.Assert(gps, qt.Not(qt.IsNil))
			c.Assert(gps.Offset, qt.Equals, f.offsets["IFD0/GPSInfoIFD"])
			c.Assert(gps.Span, qt.Equals, uint32(226))

			rec := testRecord(testTime)
			lat, long, err := layout.LatLong()
			c.Assert(err, qt.IsNil)
			c.Assert(lat, eq, rec.Lat())
			c.Assert(long, eq, rec.Lon())
		})
	}
}

func TestWalkCycle(t *testing.T) {
	c := qt.New(t)

	c.Run("Pointer to parent", func(c *qt.C) {
		f := &memFile{}
		ifd0 := &geotag.Directory{
			Entries: []geotag.Entry{
				geotag.NewEntry(tagExifIFDPointer, geotag.TypeLong, geotag.Longs{geotag.HeaderSize}),
			},
		}
		c.Assert(geotag.WriteHeader(f, binary.LittleEndian, geotag.HeaderSize), qt.IsNil)
		c.Assert(geotag.StoreDirectory(f, binary.LittleEndian, geotag.HeaderSize, ifd0, 0), qt.IsNil)

		_, err := geotag.ReadLayout(f)
		c.Assert(err, qt.ErrorIs, geotag.ErrCorruptDirectory)
		c.Assert(err, qt.ErrorMatches, "geotag: corrupt directory entry: IFD0/ExifIFD at offset 8 already loaded as IFD0")
	})

	c.Run("Next to self", func(c *qt.C) {
		f := &memFile{}
		ifd0 := &geotag.Directory{
			Entries: []geotag.Entry{geotag.NewEntry(0x0100, geotag.TypeShort, geotag.Shorts{1})},
			Next:    geotag.HeaderSize,
		}
		c.Assert(geotag.WriteHeader(f, binary.BigEndian, geotag.HeaderSize), qt.IsNil)
		c.Assert(geotag.StoreDirectory(f, binary.BigEndian, geotag.HeaderSize, ifd0, 0), qt.IsNil)

		_, err := geotag.ReadLayout(f)
		c.Assert(err, qt.ErrorIs, geotag.ErrCorruptDirectory)
		c.Assert(err, qt.ErrorMatches, ".*IFD1 at offset 8 already loaded as IFD0")
	})
}

func TestWalkTruncated(t *testing.T) {
	c := qt.New(t)

	f := newLayoutFile(c, binary.LittleEndian)
	cut := f.offsets["IFD1"] + 4

	_, err := geotag.ReadLayout(&memFile{b: f.Bytes()[:cut]})
	c.Assert(err, qt.ErrorMatches, `IFD1 at offset \d+: unexpected EOF`)
}

func TestLayoutCorrupt(t *testing.T) {
	c := qt.New(t)

	f := newLayoutFile(c, binary.LittleEndian)

	// Give the first Exif entry an unknown type.
	typePos := f.offsets["IFD0/ExifIFD"] + 2 + 2
	binary.LittleEndian.PutUint16(f.b[typePos:], 99)

	layout, err := geotag.ReadLayout(f)
	c.Assert(err, qt.IsNil)
	c.Assert(layout.Dirs, qt.HasLen, 7)

	exifDir := layout.Find("IFD0/ExifIFD")
	c.Assert(exifDir.Entries[0].Values, qt.IsNil)
	c.Assert(exifDir.Entries[0].Type, qt.Equals, geotag.Type(99))
	c.Assert(exifDir.Find(tagDateTimeOriginal).ASCII(), qt.Equals, "2009:03:28 14:03:07")

	corrupt := layout.Corrupt()
	c.Assert(corrupt, qt.ErrorIs, geotag.ErrCorruptDirectory)
	c.Assert(corrupt, qt.ErrorMatches, `(?s).*IFD0/ExifIFD: .*tag 0x829a type Type\(99\) at offset \d+: unknown type.*`)

	var merr *multierror.Error
	c.Assert(corrupt, qt.ErrorAs, &merr)
	c.Assert(merr.Errors, qt.HasLen, 1)
}

func TestLayoutLatLongNoGPS(t *testing.T) {
	c := qt.New(t)

	f := &memFile{}
	ifd0 := &geotag.Directory{Entries: []geotag.Entry{geotag.NewEntry(0x0100, geotag.TypeShort, geotag.Shorts{1})}}
	c.Assert(geotag.WriteHeader(f, binary.LittleEndian, geotag.HeaderSize), qt.IsNil)
	c.Assert(geotag.StoreDirectory(f, binary.LittleEndian, geotag.HeaderSize, ifd0, 0), qt.IsNil)

	layout, err := geotag.ReadLayout(f)
	c.Assert(err, qt.IsNil)
	c.Assert(layout.GPS(), qt.IsNil)
	_, _, err = layout.LatLong()
	c.Assert(err, qt.ErrorIs, geotag.ErrNoGPSDirectory)
}

func TestTagName(t *testing.T) {
	c := qt.New(t)

	for _, test := range []struct {
		namespace string
		tag       uint16
		want      string
	}{
		{"IFD0", 0x010f, "Make"},
		{"IFD1", 0x0103, "Compression"},
		{"IFD0/ExifIFD", 0x9003, "DateTimeOriginal"},
		{"IFD0/SubIFD0", 0x0100, "ImageWidth"},
		{"IFD0/GPSInfoIFD", 0x0002, "GPSLatitude"},
		{"IFD0/GPSInfoIFD", 0x001d, "GPSDateStamp"},
		{"IFD0/ExifIFD/InteroperabilityIFD", 0x0001, "InteroperabilityIndex"},
		{"IFD0", 0x0001, "UnknownTag_0x1"},
		{"IFD0/GPSInfoIFD", 0x9003, "UnknownTag_0x9003"},
	} {
		c.Assert(geotag.TagName(test.namespace, test.tag), qt.Equals, test.want, qt.Commentf("%s 0x%x", test.namespace, test.tag))
	}
}

func TestLayoutDump(t *testing.T) {
	c := qt.New(t)

	f := newLayoutFile(c, binary.BigEndian)
	layout, err := geotag.ReadLayout(f)
	c.Assert(err, qt.IsNil)

	var sb strings.Builder
	c.Assert(layout.Dump(&sb), qt.IsNil)
	dump := sb.String()

	c.Assert(dump, qt.Contains, "IFD0 at 8, 4 entries")
	c.Assert(dump, qt.Contains, "IFD0/GPSInfoIFD at ")
	c.Assert(dump, qt.Contains, ", 10 entries, span 226, next 0\n")
	c.Assert(dump, qt.Matches, `(?s).*0x0001 GPSLatitudeRef +ASCII\[2\] "N"\n.*`)
	c.Assert(dump, qt.Matches, `(?s).*0x014a SubIFDs +Long\[2\] \d+ \d+\n.*`)
	c.Assert(dump, qt.Matches, `(?s).*0x829a ExposureTime +Rational\[1\] 1/250\n.*`)
	c.Assert(strings.Count(dump, "\n"), qt.Equals, 7+4+1+1+3+1+10+1)
}
