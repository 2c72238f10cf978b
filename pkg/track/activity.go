package track

import "github.com/elonfeng/titlewatch/internal/store"

// Stagnated decides whether a video has permanently settled on a single
// title. days holds the distinct-title count per sampled date, newest
// first; dates without samples are excluded from the window entirely.
//
// A video stagnates only when at least threshold sampled dates exist and
// the threshold most recent ones each saw exactly one distinct title.
// With fewer sampled dates there is not enough data to call it, and any
// day with two or more titles inside the window keeps it active.
func Stagnated(days []store.DayCount, threshold int) bool {
	if threshold <= 0 || len(days) < threshold {
		return false
	}
	for _, day := range days[:threshold] {
		if day.TitleCount != 1 {
			return false
		}
	}
	return true
}
