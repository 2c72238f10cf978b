package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/elonfeng/titlewatch/internal/config"
	"github.com/elonfeng/titlewatch/internal/store"
	"github.com/elonfeng/titlewatch/pkg/track"
)

// Scheduler drives the two periodic jobs: short-interval discovery of
// new videos and long-interval re-checks of active ones. Both feed the
// same bounded pool; no unit of work ever blocks the loop itself.
type Scheduler struct {
	store       store.Store
	disc        *track.Discoverer
	proc        *track.Processor
	channels    []config.Channel
	discoverInt time.Duration
	recheckInt  time.Duration
	tasks       *pool
}

// New creates a scheduler.
func New(
	st store.Store,
	disc *track.Discoverer,
	proc *track.Processor,
	channels []config.Channel,
	discoverInt, recheckInt time.Duration,
	workers int,
) *Scheduler {
	if discoverInt == 0 {
		discoverInt = 3 * time.Minute
	}
	if recheckInt == 0 {
		recheckInt = time.Hour
	}
	return &Scheduler{
		store:       st,
		disc:        disc,
		proc:        proc,
		channels:    channels,
		discoverInt: discoverInt,
		recheckInt:  recheckInt,
		tasks:       newPool(workers),
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	discoverTicker := time.NewTicker(s.discoverInt)
	recheckTicker := time.NewTicker(s.recheckInt)
	defer discoverTicker.Stop()
	defer recheckTicker.Stop()

	// Retry first comments that never went out, then scan immediately.
	// The re-check job waits a full interval, as on the previous run
	// every active video was checked at most an interval ago.
	s.reprocessMissingComments(ctx)
	fmt.Fprintln(os.Stderr, "scheduler: initial discovery...")
	s.discoverAll(ctx)

	fmt.Fprintf(os.Stderr, "scheduler: running (discover every %s, recheck every %s, %d channels)\n",
		s.discoverInt, s.recheckInt, len(s.channels))

	for {
		select {
		case <-ctx.Done():
			s.tasks.wait()
			fmt.Fprintln(os.Stderr, "scheduler: stopped")
			return ctx.Err()
		case <-discoverTicker.C:
			s.discoverAll(ctx)
		case <-recheckTicker.C:
			s.recheckActive(ctx)
		}
	}
}

// discoverAll scans every channel in parallel. One channel failing never
// blocks or aborts the others; new videos become their own pool tasks so
// slow sampling never delays discovery.
func (s *Scheduler) discoverAll(ctx context.Context) {
	for _, ch := range s.channels {
		s.tasks.submit("discover "+ch.ID, func() {
			newVideos, err := s.disc.Discover(ctx, ch)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  [%s] discovery error: %v\n", ch.Name, err)
				return
			}
			for _, v := range newVideos {
				fmt.Fprintf(os.Stderr, "  [%s] new video: %s (published %s)\n",
					ch.Name, v.VideoID, store.DateOf(v.PublishedAt))
				s.tasks.submit("process "+v.VideoID, func() {
					s.proc.Process(ctx, v, ch.Name)
				})
			}
		})
	}
}

func (s *Scheduler) recheckActive(ctx context.Context) {
	videos, err := s.store.ActiveVideos(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scheduler: list active videos: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "scheduler: re-checking %d active videos\n", len(videos))
	for _, v := range videos {
		s.tasks.submit("recheck "+v.VideoID, func() {
			s.proc.Recheck(ctx, v)
		})
	}
}

// reprocessMissingComments retries videos whose first comment never went
// out on an earlier run.
func (s *Scheduler) reprocessMissingComments(ctx context.Context) {
	videos, err := s.store.VideosWithoutComment(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scheduler: list videos without comments: %v\n", err)
		return
	}
	if len(videos) == 0 {
		return
	}

	names := make(map[string]string, len(s.channels))
	for _, ch := range s.channels {
		names[ch.ID] = ch.Name
	}

	fmt.Fprintf(os.Stderr, "scheduler: %d videos without comments - reprocessing\n", len(videos))
	for _, v := range videos {
		name := names[v.ChannelID]
		if name == "" {
			name = v.ChannelID
		}
		s.tasks.submit("reprocess "+v.VideoID, func() {
			s.proc.Process(ctx, v, name)
		})
	}
}
