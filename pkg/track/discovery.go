package track

import (
	"context"
	"fmt"
	"time"

	"github.com/elonfeng/titlewatch/internal/config"
	"github.com/elonfeng/titlewatch/internal/store"
	"github.com/elonfeng/titlewatch/pkg/source"
)

const (
	// knownWindow bounds both the fetched list and the known-id window
	// used for anchoring.
	knownWindow = 50

	// anchorlessCandidates bounds how much of a timestamp-less list is
	// treated as new when no anchor is found, so an ambiguous state never
	// triggers mass reprocessing.
	anchorlessCandidates = 5
)

// Discoverer finds newly published videos per channel. The store's
// insert-if-absent is the sole source of truth for "new": a video is only
// emitted when the insert actually created a row, so overlapping scans
// never double-process.
type Discoverer struct {
	store  store.Store
	videos Lister
	cutoff string
}

// NewDiscoverer creates a discoverer with a global publish-date cutoff.
func NewDiscoverer(st store.Store, videos Lister, cutoff time.Time) *Discoverer {
	return &Discoverer{store: st, videos: videos, cutoff: store.DateOf(cutoff)}
}

// Discover scans one channel's recent uploads and returns the videos it
// newly tracked.
func (d *Discoverer) Discover(ctx context.Context, ch config.Channel) ([]store.Video, error) {
	refs, err := d.videos.ChannelVideos(ctx, ch.ID, knownWindow)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", ch.ID, err)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	if err := d.store.UpsertChannel(ctx, ch.ID, ch.Name); err != nil {
		return nil, err
	}

	knownIDs, err := d.store.KnownVideoIDs(ctx, ch.ID, knownWindow)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = true
	}

	if !refs[0].PublishedAt.IsZero() {
		return d.discoverTimestamped(ctx, ch, refs, known)
	}
	return d.discoverAnchored(ctx, ch, refs, known)
}

// discoverTimestamped handles feed results that carry publish dates.
// Videos before the cutoff are never stored; shorts are stored as
// inactive anchors only.
func (d *Discoverer) discoverTimestamped(ctx context.Context, ch config.Channel, refs []source.VideoRef, known map[string]bool) ([]store.Video, error) {
	var newVideos []store.Video

	for _, ref := range refs {
		if store.DateOf(ref.PublishedAt) < d.cutoff {
			continue
		}
		if known[ref.ID] {
			continue
		}

		if d.videos.IsShort(ctx, ref.ID) {
			anchor := store.Video{
				VideoID:     ref.ID,
				ChannelID:   ch.ID,
				PublishedAt: ref.PublishedAt,
				IsShort:     true,
			}
			if _, err := d.store.AddVideo(ctx, &anchor); err != nil {
				return newVideos, err
			}
			continue
		}

		v := store.Video{
			VideoID:     ref.ID,
			ChannelID:   ch.ID,
			PublishedAt: ref.PublishedAt,
			IsActive:    true,
		}
		added, err := d.store.AddVideo(ctx, &v)
		if err != nil {
			return newVideos, err
		}
		if added {
			newVideos = append(newVideos, v)
		}
	}

	// First run with nothing past the cutoff: store the newest long-form
	// upload as an inactive anchor so the timestamp-less mode has a
	// reference point.
	if len(known) == 0 && len(newVideos) == 0 {
		for _, ref := range refs {
			if d.videos.IsShort(ctx, ref.ID) {
				continue
			}
			anchor := store.Video{
				VideoID:     ref.ID,
				ChannelID:   ch.ID,
				PublishedAt: ref.PublishedAt,
			}
			if _, err := d.store.AddVideo(ctx, &anchor); err != nil {
				return nil, err
			}
			break
		}
	}

	return newVideos, nil
}

// discoverAnchored handles timestamp-less lists: everything ahead of the
// newest already-known video is a candidate. Without an anchor only a
// bounded prefix is considered.
func (d *Discoverer) discoverAnchored(ctx context.Context, ch config.Channel, refs []source.VideoRef, known map[string]bool) ([]store.Video, error) {
	anchor := -1
	for i, ref := range refs {
		if known[ref.ID] {
			anchor = i
			break
		}
	}

	candidates := refs
	if anchor >= 0 {
		candidates = refs[:anchor]
	} else if len(candidates) > anchorlessCandidates {
		candidates = candidates[:anchorlessCandidates]
	}

	now := time.Now().UTC()
	var newVideos []store.Video
	for _, ref := range candidates {
		if known[ref.ID] {
			continue
		}
		v := store.Video{
			VideoID:     ref.ID,
			ChannelID:   ch.ID,
			PublishedAt: now,
			IsActive:    true,
		}
		added, err := d.store.AddVideo(ctx, &v)
		if err != nil {
			return newVideos, err
		}
		if added {
			newVideos = append(newVideos, v)
		}
	}
	return newVideos, nil
}
