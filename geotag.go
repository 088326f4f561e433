// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package geotag writes GPS positions from NMEA track logs into the GPS
// directory of TIFF based raw files, in place.
//
// The file is never grown: the new GPS directory must fit in the bytes
// owned by the GPS directory already in the file.
package geotag

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
)

const (
	// DefaultWindow is the default maximum time between a photo and a fix.
	DefaultWindow = 60 * time.Second

	dateTimeLayout = "2006:01:02 15:04:05"
)

// Options contains the options for Geotag and GeotagFiles.
type Options struct {
	// The file to geotag. Set by GeotagFiles.
	File io.ReadWriteSeeker

	// Track sorted by time, see ReadTrack and MergeTracks.
	Track []Record

	// Window is the maximum time between the photo and the matched fix.
	// Default value is DefaultWindow.
	Window time.Duration

	// Location is the time zone of the camera clock.
	// Default value is UTC.
	Location *time.Location

	// ClockOffset is added to the camera time before matching,
	// e.g. to correct a camera clock that is 30 seconds slow.
	ClockOffset time.Duration

	// DryRun matches and builds the GPS directory without writing it.
	DryRun bool

	// Warnf will be called for each warning.
	Warnf func(string, ...any)
}

func (o *Options) init() {
	if o.Window == 0 {
		o.Window = DefaultWindow
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Warnf == nil {
		o.Warnf = func(string, ...any) {}
	}
}

// Result is the outcome of geotagging one file.
type Result struct {
	// Filename is set by GeotagFiles.
	Filename string

	// PhotoTime is the camera time with ClockOffset applied.
	PhotoTime time.Time

	// Record is the matched fix.
	Record Record

	// Delta is the time between the photo and the fix.
	Delta time.Duration

	// GPS is the directory that was, or in a dry run would have been, written.
	GPS *Directory

	// Written is false in a dry run.
	Written bool
}

// Geotag matches the timestamp of opts.File against opts.Track and
// overwrites the file's GPS directory with the position of the matched fix.
func Geotag(opts Options) (Result, error) {
	var result Result

	if opts.File == nil {
		return result, errors.New("no file")
	}
	opts.init()

	order, ifd0, err := ReadHeader(opts.File)
	if err != nil {
		return result, err
	}

	layout, err := Walk(opts.File, order, ifd0)
	if err != nil {
		return result, err
	}
	for _, d := range layout.Dirs {
		if d.Corrupt != nil {
			opts.Warnf("%s: %v", d.Namespace, d.Corrupt)
		}
	}

	photoTime, err := findPhotoTime(layout, opts.Location)
	if err != nil {
		return result, err
	}
	result.PhotoTime = photoTime.Add(opts.ClockOffset)

	target := result.PhotoTime.Unix()
	rec, found := FindNearest(opts.Track, target, int64(opts.Window/time.Second))
	if !found {
		return result, fmt.Errorf("%w: photo taken %s", ErrNoMatch, result.PhotoTime.UTC().Format(time.RFC3339))
	}
	result.Record = *rec
	result.Delta = time.Duration(rec.Time-target) * time.Second

	gps := layout.GPS()
	if gps == nil {
		return result, ErrNoGPSDirectory
	}

	result.GPS = SynthesizeGPS(*rec, gps.Next)
	if opts.DryRun {
		return result, nil
	}

	if err := StoreDirectory(opts.File, order, gps.Offset, result.GPS, gps.Span); err != nil {
		return result, err
	}
	result.Written = true

	return result, nil
}

// DateTimeOriginal falls back to DateTime.
func findPhotoTime(l *Layout, loc *time.Location) (time.Time, error) {
	candidates := []struct {
		namespace string
		tag       uint16
	}{
		{namespaceExifIFDPath, tagDateTimeOriginal},
		{"IFD0", tagDateTime},
	}

	for _, c := range candidates {
		d := l.Find(c.namespace)
		if d == nil {
			continue
		}
		e := d.Find(c.tag)
		if e == nil {
			continue
		}
		s := printableString(e.ASCII())
		if s == "" {
			continue
		}
		t, err := time.ParseInLocation(dateTimeLayout, s, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("%s: %w", TagName(c.namespace, c.tag), err)
		}
		return t, nil
	}

	return time.Time{}, ErrNoTimestamp
}

// GeotagFiles runs Geotag on each file in filenames. A failure does not stop
// the processing of the remaining files; all failures are returned together,
// each prefixed with its filename.
func GeotagFiles(filenames []string, opts Options) ([]Result, error) {
	opts.init()

	var (
		results []Result
		merr    *multierror.Error
	)

	for _, filename := range filenames {
		result, err := geotagFile(filename, opts)
		if err != nil {
			err = fmt.Errorf("%s: %w", filename, err)
			opts.Warnf("%v", err)
			merr = multierror.Append(merr, err)
			continue
		}
		results = append(results, result)
	}

	return results, merr.ErrorOrNil()
}

func geotagFile(filename string, opts Options) (result Result, err error) {
	flag := os.O_RDWR
	if opts.DryRun {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(filename, flag, 0)
	if err != nil {
		return result, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	opts.File = f
	result, err = Geotag(opts)
	result.Filename = filename

	return result, err
}
