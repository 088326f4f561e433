// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import "math"

const (
	// Altitudes are stored in decimeters.
	altitudeDenominator = 10
	// Seconds of arc are stored in hundredths.
	secondsDenominator = 100

	// Below this the geoid height is treated as missing and no altitude is written.
	minGeoidHeight = 1e-3
)

var gpsVersion = Bytes{2, 2, 0, 0}

// SynthesizeGPS builds a GPS directory for rec. next is copied into the
// directory's Next so the directory chain of the file is kept intact.
//
// The altitude entries and the map datum are only included if rec has a
// geoid height.
func SynthesizeGPS(rec Record, next uint32) *Directory {
	entries := []Entry{
		NewEntry(tagGPSVersionID, TypeByte, gpsVersion),
		NewASCIIEntry(tagGPSLatitudeRef, refString(rec.LatRef, 'N')),
		NewEntry(tagGPSLatitude, TypeRational, toDMS(rec.Latitude)),
		NewASCIIEntry(tagGPSLongitudeRef, refString(rec.LonRef, 'E')),
		NewEntry(tagGPSLongitude, TypeRational, toDMS(rec.Longitude)),
	}

	if math.Abs(rec.GeoidHeight) > minGeoidHeight {
		var ref byte
		if rec.Altitude < 0 {
			ref = 1
		}
		alt := uint32(math.Trunc(math.Abs(rec.Altitude) * altitudeDenominator))
		entries = append(entries,
			NewEntry(tagGPSAltitudeRef, TypeByte, Bytes{ref}),
			NewEntry(tagGPSAltitude, TypeRational, Rationals{NewRat[uint32](alt, altitudeDenominator)}),
			NewASCIIEntry(tagGPSMapDatum, "WGS-84"),
		)
	}

	t := rec.UTC()
	entries = append(entries,
		NewEntry(tagGPSTimeStamp, TypeRational, Rationals{
			NewRat[uint32](uint32(t.Hour()), 1),
			NewRat[uint32](uint32(t.Minute()), 1),
			NewRat[uint32](uint32(t.Second()), 1),
		}),
		NewASCIIEntry(tagGPSDateStamp, t.Format("2006:01:02")),
	)

	return &Directory{
		Entries: entries,
		Next:    next,
	}
}

// toDMS converts a ddmm.mmmm value to degrees, minutes and seconds.
// Seconds are truncated to hundredths.
func toDMS(v float64) Rationals {
	v = math.Abs(v)
	deg := math.Floor(v / 100)
	rem := v - deg*100
	min := math.Floor(rem)
	sec := (rem - min) * 60
	return Rationals{
		NewRat[uint32](uint32(deg), 1),
		NewRat[uint32](uint32(min), 1),
		NewRat[uint32](uint32(math.Trunc(sec*secondsDenominator)), secondsDenominator),
	}
}

func refString(ref, def byte) string {
	if ref == 0 {
		ref = def
	}
	return string(rune(ref))
}
