package track

import (
	"math/rand"
	"testing"

	"github.com/elonfeng/titlewatch/internal/store"
)

func days(counts ...int) []store.DayCount {
	out := make([]store.DayCount, len(counts))
	for i, c := range counts {
		out[i] = store.DayCount{TitleCount: c}
	}
	return out
}

func TestStagnated(t *testing.T) {
	tests := []struct {
		name      string
		days      []store.DayCount
		threshold int
		want      bool
	}{
		{"no data", nil, 5, false},
		{"too few sampled days", days(1, 1, 1), 5, false},
		{"exactly threshold single-title days", days(1, 1, 1, 1, 1), 5, true},
		{"recent variant day keeps it active", days(2, 1, 1, 1, 1), 5, false},
		{"variant day inside window", days(1, 1, 1, 2, 1), 5, false},
		{"variant day outside window", days(1, 1, 1, 1, 1, 3, 2), 5, true},
		{"early history irrelevant", days(1, 1, 1, 1, 1, 2, 2, 2, 2, 2), 5, true},
		{"zero-count day never counts as settled", days(1, 1, 0, 1, 1), 5, false},
		{"threshold one", days(1, 2, 2), 1, true},
		{"zero threshold never stagnates", days(1, 1, 1), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Stagnated(tt.days, tt.threshold); got != tt.want {
				t.Errorf("Stagnated(%v, %d) = %v, want %v", tt.days, tt.threshold, got, tt.want)
			}
		})
	}
}

// Appending older days past the window must never change the verdict:
// only the threshold most recent sampled days matter.
func TestStagnated_IgnoresDaysPastWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		window := make([]store.DayCount, 5)
		for j := range window {
			window[j] = store.DayCount{TitleCount: 1 + rng.Intn(3)}
		}
		base := Stagnated(window, 5)

		extended := append([]store.DayCount(nil), window...)
		for j := 0; j < rng.Intn(10); j++ {
			extended = append(extended, store.DayCount{TitleCount: 1 + rng.Intn(4)})
		}
		if got := Stagnated(extended, 5); got != base {
			t.Fatalf("verdict changed from %v to %v when older days appended: %v", base, got, extended)
		}
	}
}
