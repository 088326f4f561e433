// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Rat is a rational number as stored in a TIFF entry.
// It is never reduced or sign normalized, so it encodes back to the same bytes.
type Rat[T int32 | uint32] struct {
	num T
	den T
}

// NewRat returns a new Rat with the given numerator and denominator.
func NewRat[T int32 | uint32](num, den T) Rat[T] {
	return Rat[T]{num: num, den: den}
}

// Num returns the numerator of the rational number.
func (r Rat[T]) Num() T {
	return r.num
}

// Den returns the denominator of the rational number.
func (r Rat[T]) Den() T {
	return r.den
}

// Float64 returns the float64 representation of the rational number.
// A zero denominator gives an infinity or NaN.
func (r Rat[T]) Float64() float64 {
	return float64(r.num) / float64(r.den)
}

// String returns the string representation of the rational number.
// If the denominator is 1, the string will be the numerator only.
func (r Rat[T]) String() string {
	if r.den == 1 {
		return fmt.Sprintf("%d", r.num)
	}
	return fmt.Sprintf("%d/%d", r.num, r.den)
}

type float64Provider interface {
	Float64() float64
}

func isUndefined(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// toDegrees converts a degrees, minutes, seconds triplet to decimal degrees.
func toDegrees[T float64Provider](v []T) (float64, error) {
	if len(v) != 3 {
		return 0, fmt.Errorf("expected 3 values, got %d", len(v))
	}
	deg := v[0].Float64()
	min := v[1].Float64()
	sec := v[2].Float64()
	d := deg + min/60 + sec/3600
	if isUndefined(d) {
		return 0, fmt.Errorf("undefined degrees %v %v %v", v[0], v[1], v[2])
	}
	return d, nil
}

func printableString(s string) string {
	ss := strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) {
			return r
		}
		return -1
	}, s)

	return strings.TrimSpace(ss)
}

func trimBytesNulls(b []byte) []byte {
	var lo, hi int
	for lo = 0; lo < len(b) && b[lo] == 0; lo++ {
	}
	for hi = len(b) - 1; hi >= 0 && b[hi] == 0; hi-- {
	}
	if lo > hi {
		return nil
	}
	return b[lo : hi+1]
}

func alignWord(n uint32) uint32 {
	return (n + 1) &^ 1
}
