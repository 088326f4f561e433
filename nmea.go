// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	secondsPerDay = 24 * 60 * 60

	// NMEA sentences are at most 82 characters. Longer lines are skipped.
	maxLineLength = 4096
)

// Record is a single fix from a track log.
type Record struct {
	// Time of the fix in seconds since the Unix epoch, UTC.
	Time int64

	// Status is 'A' for a valid fix and 'V' for a void one.
	Status byte

	// Latitude and Longitude as logged, ddmm.mmmm and dddmm.mmmm.
	// Use Lat and Lon for decimal degrees.
	Latitude  float64
	LatRef    byte // 'N' or 'S'
	Longitude float64
	LonRef    byte // 'E' or 'W'

	// Speed over ground in knots.
	Speed float64
	// Heading in degrees true.
	Heading float64

	// Set from a GGA sentence of the same fix.
	FixQuality  int
	Satellites  int
	HDOP        float64
	Altitude    float64 // meters above mean sea level
	GeoidHeight float64 // meters
	HasAltitude bool
}

// Lat returns the latitude in signed decimal degrees.
func (r Record) Lat() float64 {
	d := nmeaDegrees(r.Latitude)
	if r.LatRef == 'S' {
		return -d
	}
	return d
}

// Lon returns the longitude in signed decimal degrees.
func (r Record) Lon() float64 {
	d := nmeaDegrees(r.Longitude)
	if r.LonRef == 'W' {
		return -d
	}
	return d
}

// UTC returns the fix time.
func (r Record) UTC() time.Time {
	return time.Unix(r.Time, 0).UTC()
}

func nmeaDegrees(v float64) float64 {
	v = math.Abs(v)
	deg := math.Floor(v / 100)
	return deg + (v-deg*100)/60
}

// TrackOptions contains the options for ReadTrack.
type TrackOptions struct {
	// Encoding of the track file: "utf-8" (default), "utf-16",
	// "iso-8859-1" or "windows-1252". A UTF-16 byte order mark
	// overrides the default.
	Encoding string

	// KeepVoid keeps fixes with status 'V'.
	KeepVoid bool

	// Warnf will be called for each skipped line.
	Warnf func(string, ...any)
}

func textDecoder(name string) (transform.Transformer, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported track encoding %q", name)
	}
}

// ReadTrack reads RMC and GGA sentences from an NMEA 0183 log.
//
// A record is created for each RMC sentence and augmented with the altitude
// from the GGA sentence of the same fix, in whatever order they are logged.
// Lines with a bad checksum, unparsable fields or more than 4096 bytes are
// skipped with a warning.
// The records are returned sorted by time.
func ReadTrack(r io.Reader, opts TrackOptions) ([]Record, error) {
	if opts.Warnf == nil {
		opts.Warnf = func(string, ...any) {}
	}
	dec, err := textDecoder(opts.Encoding)
	if err != nil {
		return nil, err
	}

	tr := &trackReader{opts: opts}

	br := bufio.NewReaderSize(transform.NewReader(r, dec), maxLineLength)
	for lineNum := 1; ; lineNum++ {
		line, err := br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			n := len(line)
			for err == bufio.ErrBufferFull {
				line, err = br.ReadSlice('\n')
				n += len(line)
			}
			opts.Warnf("track line %d: line too long (%d bytes)", lineNum, n)
		} else if len(line) > 0 {
			if perr := tr.parseLine(string(line)); perr != nil {
				opts.Warnf("track line %d: %v", lineNum, perr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	slices.SortStableFunc(tr.records, compareTime)

	return tr.records, nil
}

// MergeTracks merges tracks into one track sorted by time.
func MergeTracks(tracks ...[]Record) []Record {
	var merged []Record
	for _, t := range tracks {
		merged = append(merged, t...)
	}
	slices.SortStableFunc(merged, compareTime)
	return merged
}

func compareTime(a, b Record) int {
	return cmp.Compare(a.Time, b.Time)
}

type ggaFix struct {
	timeOfDay   int64
	fixQuality  int
	satellites  int
	hdop        float64
	altitude    float64
	geoidHeight float64
}

type trackReader struct {
	opts    TrackOptions
	records []Record

	// A GGA sentence logged before the RMC sentence of its fix.
	pending *ggaFix
}

func (t *trackReader) parseLine(line string) error {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return nil
	}

	payload := line[1:]
	if i := strings.LastIndexByte(payload, '*'); i >= 0 {
		if err := verifyChecksum(payload[:i], payload[i+1:]); err != nil {
			return err
		}
		payload = payload[:i]
	}

	fields := splitFields(payload, ',', 20)
	if len(fields[0]) != 5 {
		return nil
	}

	// Any talker: GP, GN, GL ...
	switch fields[0][2:] {
	case "RMC":
		return t.parseRMC(fields)
	case "GGA":
		return t.parseGGA(fields)
	}

	return nil
}

// splitFields strips any trailing line terminators from line and splits it
// on sep into at most max fields.
func splitFields(line string, sep byte, max int) []string {
	line = strings.TrimRight(line, "\r\n")
	return strings.SplitN(line, string(sep), max)
}

func verifyChecksum(payload, checksum string) error {
	want, err := strconv.ParseUint(checksum, 16, 8)
	if err != nil {
		return fmt.Errorf("invalid checksum %q", checksum)
	}
	var got byte
	for i := 0; i < len(payload); i++ {
		got ^= payload[i]
	}
	if uint64(got) != want {
		return fmt.Errorf("checksum mismatch: got %02X, want %02X", got, want)
	}
	return nil
}

// RMC: time, status, lat, N/S, lon, E/W, speed, course, date, ...
func (t *trackReader) parseRMC(fields []string) error {
	if len(fields) < 10 {
		return fmt.Errorf("RMC: expected at least 10 fields, got %d", len(fields))
	}

	rec := Record{Status: firstByte(fields[2])}
	if rec.Status != 'A' && !t.opts.KeepVoid {
		return nil
	}

	tod, err := parseTimeOfDay(fields[1])
	if err != nil {
		return fmt.Errorf("RMC: %w", err)
	}
	day, err := parseDate(fields[9])
	if err != nil {
		return fmt.Errorf("RMC: %w", err)
	}
	rec.Time = day + tod

	if rec.Latitude, rec.LatRef, err = parseCoordinate(fields[3], fields[4]); err != nil {
		return fmt.Errorf("RMC: latitude: %w", err)
	}
	if rec.Longitude, rec.LonRef, err = parseCoordinate(fields[5], fields[6]); err != nil {
		return fmt.Errorf("RMC: longitude: %w", err)
	}
	rec.Speed = parseOptionalFloat(fields[7])
	rec.Heading = parseOptionalFloat(fields[8])

	if t.pending != nil && t.pending.timeOfDay == tod {
		t.pending.apply(&rec)
	}
	t.pending = nil

	t.records = append(t.records, rec)

	return nil
}

// GGA: time, lat, N/S, lon, E/W, quality, satellites, hdop, altitude, M, geoid height, M, ...
func (t *trackReader) parseGGA(fields []string) error {
	if len(fields) < 12 {
		return fmt.Errorf("GGA: expected at least 12 fields, got %d", len(fields))
	}
	tod, err := parseTimeOfDay(fields[1])
	if err != nil {
		return fmt.Errorf("GGA: %w", err)
	}
	if fields[9] == "" {
		// No altitude in this fix.
		return nil
	}
	altitude, err := strconv.ParseFloat(fields[9], 64)
	if err != nil {
		return fmt.Errorf("GGA: altitude: %w", err)
	}

	fix := &ggaFix{
		timeOfDay:   tod,
		fixQuality:  int(parseOptionalFloat(fields[6])),
		satellites:  int(parseOptionalFloat(fields[7])),
		hdop:        parseOptionalFloat(fields[8]),
		altitude:    altitude,
		geoidHeight: parseOptionalFloat(fields[11]),
	}

	if n := len(t.records); n > 0 {
		last := &t.records[n-1]
		if mod(last.Time, secondsPerDay) == tod {
			fix.apply(last)
			return nil
		}
	}

	t.pending = fix

	return nil
}

// apply is idempotent and never overwrites an altitude already set.
func (f *ggaFix) apply(rec *Record) {
	if rec.HasAltitude {
		return
	}
	rec.FixQuality = f.fixQuality
	rec.Satellites = f.satellites
	rec.HDOP = f.hdop
	rec.Altitude = f.altitude
	rec.GeoidHeight = f.geoidHeight
	rec.HasAltitude = true
}

// parseTimeOfDay parses hhmmss(.sss) into seconds since midnight.
// Fractional seconds are truncated.
func parseTimeOfDay(s string) (int64, error) {
	if len(s) < 6 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err1 := strconv.Atoi(s[0:2])
	m, err2 := strconv.Atoi(s[2:4])
	sec, err3 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil || h > 23 || m > 59 || sec > 60 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return int64(h*3600 + m*60 + sec), nil
}

// parseDate parses ddmmyy into seconds since the Unix epoch at midnight UTC.
func parseDate(s string) (int64, error) {
	if len(s) != 6 {
		return 0, fmt.Errorf("invalid date %q", s)
	}
	d, err1 := strconv.Atoi(s[0:2])
	m, err2 := strconv.Atoi(s[2:4])
	y, err3 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil || d < 1 || d > 31 || m < 1 || m > 12 {
		return 0, fmt.Errorf("invalid date %q", s)
	}
	// NMEA has two digit years.
	if y < 80 {
		y += 2000
	} else {
		y += 1900
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC).Unix(), nil
}

func parseCoordinate(value, ref string) (float64, byte, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, 0, err
	}
	r := firstByte(ref)
	switch r {
	case 'N', 'S', 'E', 'W':
	default:
		return 0, 0, fmt.Errorf("invalid reference %q", ref)
	}
	return math.Abs(v), r, nil
}

func parseOptionalFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func firstByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[0]
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
