// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHeader is returned when a file does not start with a valid
	// II/MM byte order marker followed by the magic number 42.
	ErrInvalidHeader = errors.New("geotag: invalid header")

	// ErrCorruptDirectory marks a directory entry that could not be decoded.
	// These are collected in Directory.Corrupt and do not stop the decoding.
	ErrCorruptDirectory = errors.New("geotag: corrupt directory entry")

	// ErrNoMatch is returned when no track point is within the time window.
	ErrNoMatch = errors.New("geotag: no location within time window")

	// ErrNoTimestamp is returned when a file has neither DateTimeOriginal nor DateTime.
	ErrNoTimestamp = errors.New("geotag: no timestamp")

	// ErrNoGPSDirectory is returned when the file has no GPS directory to overwrite.
	ErrNoGPSDirectory = errors.New("geotag: no GPS directory")

	// ErrWriteOverflow is returned when an encoded directory would not fit
	// in the span of the directory it replaces.
	ErrWriteOverflow = errors.New("geotag: directory does not fit in the original span")

	// ErrUnencodable is returned when an entry's values do not match its type or count.
	ErrUnencodable = errors.New("geotag: unencodable entry")
)

// CorruptDirectoryError describes one directory entry that could not be decoded.
type CorruptDirectoryError struct {
	// Tag and Type as read from the entry.
	Tag  uint16
	Type Type
	// Offset of the 12 byte entry record.
	Offset int64
	Reason string
}

func (e *CorruptDirectoryError) Error() string {
	return fmt.Sprintf("%s: tag 0x%04x type %s at offset %d: %s", ErrCorruptDirectory, e.Tag, e.Type, e.Offset, e.Reason)
}

func (e *CorruptDirectoryError) Is(target error) bool {
	return target == ErrCorruptDirectory
}

func newCorruptDirectoryErrorf(tag uint16, typ Type, offset int64, format string, args ...any) *CorruptDirectoryError {
	return &CorruptDirectoryError{
		Tag:    tag,
		Type:   typ,
		Offset: offset,
		Reason: fmt.Sprintf(format, args...),
	}
}

// IsInvalidHeader reports whether err was caused by an invalid container header.
func IsInvalidHeader(err error) bool {
	return errors.Is(err, ErrInvalidHeader)
}

// IsNoMatch reports whether err means that the track had no usable fix for the photo.
func IsNoMatch(err error) bool {
	return errors.Is(err, ErrNoMatch)
}
