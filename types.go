// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import "fmt"

// Type is the TIFF data type of a directory entry.
type Type uint16

const (
	TypeByte      Type = 1
	TypeASCII     Type = 2
	TypeShort     Type = 3
	TypeLong      Type = 4
	TypeRational  Type = 5
	TypeSByte     Type = 6
	TypeUndefined Type = 7
	TypeSShort    Type = 8
	TypeSLong     Type = 9
	TypeSRational Type = 10
	TypeFloat     Type = 11
	TypeDouble    Type = 12
	// TypeIFD is a LONG holding a directory offset (TIFF Supplement 1).
	TypeIFD Type = 13
)

// Size in bytes of each type, indexed by type. Zero means unknown.
var typeSizes = [...]uint32{
	TypeByte:      1,
	TypeASCII:     1,
	TypeShort:     2,
	TypeLong:      4,
	TypeRational:  8,
	TypeSByte:     1,
	TypeUndefined: 1,
	TypeSShort:    2,
	TypeSLong:     4,
	TypeSRational: 8,
	TypeFloat:     4,
	TypeDouble:    8,
	TypeIFD:       4,
}

var typeNames = [...]string{
	TypeByte:      "Byte",
	TypeASCII:     "ASCII",
	TypeShort:     "Short",
	TypeLong:      "Long",
	TypeRational:  "Rational",
	TypeSByte:     "SByte",
	TypeUndefined: "Undefined",
	TypeSShort:    "SShort",
	TypeSLong:     "SLong",
	TypeSRational: "SRational",
	TypeFloat:     "Float",
	TypeDouble:    "Double",
	TypeIFD:       "IFD",
}

// Size returns the size in bytes of a single value of t.
// It returns false if t is not a known type.
func (t Type) Size() (uint32, bool) {
	if int(t) >= len(typeSizes) || typeSizes[t] == 0 {
		return 0, false
	}
	return typeSizes[t], true
}

func (t Type) String() string {
	if int(t) < len(typeNames) && typeNames[t] != "" {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint16(t))
}

// Values holds the decoded values of a directory entry.
// It is one of Bytes, SBytes, Shorts, SShorts, Longs, SLongs,
// Floats, Doubles, Rationals or SRationals.
type Values interface {
	// Len returns the number of values.
	Len() int

	values()
}

type (
	// Bytes holds Byte, ASCII and Undefined values. ASCII values keep their NUL terminator.
	Bytes      []byte
	SBytes     []int8
	Shorts     []uint16
	SShorts    []int16
	Longs      []uint32
	SLongs     []int32
	Floats     []float32
	Doubles    []float64
	Rationals  []Rat[uint32]
	SRationals []Rat[int32]
)

func (v Bytes) Len() int      { return len(v) }
func (v SBytes) Len() int     { return len(v) }
func (v Shorts) Len() int     { return len(v) }
func (v SShorts) Len() int    { return len(v) }
func (v Longs) Len() int      { return len(v) }
func (v SLongs) Len() int     { return len(v) }
func (v Floats) Len() int     { return len(v) }
func (v Doubles) Len() int    { return len(v) }
func (v Rationals) Len() int  { return len(v) }
func (v SRationals) Len() int { return len(v) }

func (Bytes) values()      {}
func (SBytes) values()     {}
func (Shorts) values()     {}
func (SShorts) values()    {}
func (Longs) values()      {}
func (SLongs) values()     {}
func (Floats) values()     {}
func (Doubles) values()    {}
func (Rationals) values()  {}
func (SRationals) values() {}

// holds reports whether v is the variant used to store values of type t.
func (t Type) holds(v Values) bool {
	switch v.(type) {
	case Bytes:
		return t == TypeByte || t == TypeASCII || t == TypeUndefined
	case SBytes:
		return t == TypeSByte
	case Shorts:
		return t == TypeShort
	case SShorts:
		return t == TypeSShort
	case Longs:
		return t == TypeLong || t == TypeIFD
	case SLongs:
		return t == TypeSLong
	case Floats:
		return t == TypeFloat
	case Doubles:
		return t == TypeDouble
	case Rationals:
		return t == TypeRational
	case SRationals:
		return t == TypeSRational
	default:
		return false
	}
}
