// Package track implements the title-change tracking engine: discovering
// new videos per channel, sampling their displayed titles, detecting
// stagnation, and maintaining one summary comment per video.
package track

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/elonfeng/titlewatch/pkg/source"
)

// Lister fetches a channel's recent uploads and classifies videos.
type Lister interface {
	ChannelVideos(ctx context.Context, channelID string, max int) ([]source.VideoRef, error)
	IsShort(ctx context.Context, videoID string) bool
}

// Sampler takes title snapshots.
type Sampler interface {
	SampleTitles(ctx context.Context, videoID string, count int, delay time.Duration) []string
	SampleTitlesParallel(ctx context.Context, videoID string, count int) []string
}

// Commenter creates and edits the per-video summary comment.
type Commenter interface {
	Post(ctx context.Context, videoID, text string) (string, error)
	Update(ctx context.Context, commentID, text string) error
}

func logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// distinct returns the sorted set of unique titles.
func distinct(titles []string) []string {
	seen := make(map[string]bool, len(titles))
	var out []string
	for _, t := range titles {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// sameSet reports membership equality of two title sets.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if !set[t] {
			return false
		}
	}
	return true
}
