// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import "sort"

// FindNearest returns the record in track closest in time to target, if it
// is no more than window seconds away. track must be sorted by Time.
// On a tie the earlier record wins.
func FindNearest(track []Record, target, window int64) (*Record, bool) {
	if len(track) == 0 {
		return nil, false
	}

	i := sort.Search(len(track), func(i int) bool {
		return track[i].Time >= target
	})

	best := -1
	var bestDelta int64
	for _, j := range [2]int{i - 1, i} {
		if j < 0 || j >= len(track) {
			continue
		}
		delta := track[j].Time - target
		if delta < 0 {
			delta = -delta
		}
		if best == -1 || delta < bestDelta {
			best, bestDelta = j, delta
		}
	}

	if bestDelta > window {
		return nil, false
	}

	return &track[best], true
}
