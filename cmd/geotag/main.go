// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Command geotag writes GPS positions from NMEA track logs into raw files.
//
//	geotag -track day1.nmea [-track day2.nmea] [flags] photo.nef ...
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bep/geotag"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("geotag: ")

	var (
		tracks   []string
		window   = flag.Duration("window", geotag.DefaultWindow, "max time between photo and fix")
		tz       = flag.String("tz", "UTC", "time zone of the camera clock, e.g. Europe/Oslo")
		offset   = flag.Duration("offset", 0, "added to the camera time before matching")
		encoding = flag.String("encoding", "utf-8", "track file encoding: utf-8, utf-16, iso-8859-1 or windows-1252")
		keepVoid = flag.Bool("keep-void", false, "use fixes with void status")
		dryRun   = flag.Bool("dry-run", false, "match but do not write")
		dump     = flag.Bool("dump", false, "list the directories of each file and exit")
		verbose  = flag.Bool("v", false, "verbose output")
	)
	flag.Func("track", "NMEA track log (repeatable)", func(s string) error {
		tracks = append(tracks, s)
		return nil
	})
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -track log.nmea [options] file ...\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	warnf := func(string, ...any) {}
	if *verbose {
		warnf = log.Printf
	}

	if *dump {
		if err := dumpFiles(flag.Args()); err != nil {
			log.Fatal(err)
		}
		return
	}

	if len(tracks) == 0 {
		log.Fatal("no track files given")
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		log.Fatal(err)
	}

	var all [][]geotag.Record
	for _, filename := range tracks {
		track, err := readTrack(filename, geotag.TrackOptions{
			Encoding: *encoding,
			KeepVoid: *keepVoid,
			Warnf:    warnf,
		})
		if err != nil {
			log.Fatal(err)
		}
		if *verbose {
			log.Printf("%s: %d fixes", filename, len(track))
		}
		all = append(all, track)
	}

	results, err := geotag.GeotagFiles(flag.Args(), geotag.Options{
		Track:       geotag.MergeTracks(all...),
		Window:      *window,
		Location:    loc,
		ClockOffset: *offset,
		DryRun:      *dryRun,
		Warnf:       warnf,
	})

	for _, r := range results {
		verb := "tagged"
		if !r.Written {
			verb = "matched"
		}
		fmt.Printf("%s: %s %.6f,%.6f (fix %s, %s off)\n",
			r.Filename, verb, r.Record.Lat(), r.Record.Lon(),
			r.Record.UTC().Format(time.RFC3339), r.Delta)
	}

	if err != nil {
		log.Print(err)
		os.Exit(1)
	}
}

func readTrack(filename string, opts geotag.TrackOptions) ([]geotag.Record, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	track, err := geotag.ReadTrack(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return track, nil
}

func dumpFiles(filenames []string) error {
	for _, filename := range filenames {
		if err := dumpFile(filename); err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
	}
	return nil
}

func dumpFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	layout, err := geotag.ReadLayout(f)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", filename, layout.Order)
	return layout.Dump(os.Stdout)
}
