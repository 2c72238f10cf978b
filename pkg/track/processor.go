package track

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/elonfeng/titlewatch/internal/store"
	"github.com/elonfeng/titlewatch/pkg/comment"
)

// Options configures sampling budgets and stagnation detection.
type Options struct {
	SamplesPerRun int
	FastSamples   int
	MinBeforePost int
	SampleDelay   time.Duration
	InactiveDays  int
	Intros        []string
}

// Processor samples titles for tracked videos and keeps each video's
// summary comment current.
type Processor struct {
	store    store.Store
	titles   Sampler
	comments Commenter // nil disables all comment publishing
	opts     Options
	now      func() time.Time
}

// NewProcessor creates a processor. Pass a nil Commenter to run without
// posting or editing comments.
func NewProcessor(st store.Store, titles Sampler, comments Commenter, opts Options) *Processor {
	if opts.SamplesPerRun <= 0 {
		opts.SamplesPerRun = 21
	}
	if opts.FastSamples <= 0 {
		opts.FastSamples = 3
	}
	if opts.InactiveDays <= 0 {
		opts.InactiveDays = 5
	}
	return &Processor{
		store:    st,
		titles:   titles,
		comments: comments,
		opts:     opts,
		now:      time.Now,
	}
}

// Process handles a newly tracked video: sample titles, record history,
// post or update its comment. When no comment exists yet the fast path
// posts from a few parallel samples first, then finishes the budget in
// the background.
func (p *Processor) Process(ctx context.Context, v store.Video, channelName string) {
	logf("[%s] processing video %s (published %s)", channelName, v.VideoID, store.DateOf(v.PublishedAt))

	commentID, err := p.store.CommentID(ctx, v.VideoID)
	if err != nil {
		logf("[%s] %s: %v", channelName, v.VideoID, err)
		return
	}

	if commentID == "" && p.comments != nil && !v.IsIgnored {
		p.processFast(ctx, v, channelName)
		return
	}
	p.processFull(ctx, v, channelName)
}

// processFast minimizes the window before the first comment appears:
// a handful of parallel samples, publish immediately, then the rest of
// the budget sequentially with a follow-up edit only if new variants
// turned up.
func (p *Processor) processFast(ctx context.Context, v store.Video, channelName string) {
	quick := p.titles.SampleTitlesParallel(ctx, v.VideoID, p.opts.FastSamples)
	quickSet := distinct(quick)

	if len(quick) > 0 {
		p.recordSamples(ctx, v.VideoID, quick)
		if err := p.store.UpdateTitleHistory(ctx, v.VideoID, quickSet, store.DateOf(p.now())); err != nil {
			logf("[%s] %s: %v", channelName, v.VideoID, err)
		}

		text, err := p.compose(ctx, v.VideoID, false)
		if err != nil {
			logf("[%s] %s: %v", channelName, v.VideoID, err)
		} else {
			id, err := p.comments.Post(ctx, v.VideoID, text)
			switch {
			case errors.Is(err, comment.ErrQuota):
				logf("[%s] quota exceeded - skipping comment for %s", channelName, v.VideoID)
			case err != nil:
				logf("[%s] failed to post comment for %s: %v", channelName, v.VideoID, err)
			default:
				if err := p.store.SetCommentID(ctx, v.VideoID, id); err != nil {
					logf("[%s] %s: %v", channelName, v.VideoID, err)
				}
				logf("[%s] comment posted for %s", channelName, v.VideoID)
			}
		}
	}

	// Finish the budget gently.
	remaining := p.opts.SamplesPerRun - p.opts.FastSamples
	if remaining <= 0 {
		return
	}
	more := p.titles.SampleTitles(ctx, v.VideoID, remaining, p.opts.SampleDelay)
	if len(more) > 0 {
		p.recordSamples(ctx, v.VideoID, more)

		all := distinct(append(append([]string(nil), quick...), more...))
		if err := p.store.UpdateTitleHistory(ctx, v.VideoID, all, store.DateOf(p.now())); err != nil {
			logf("[%s] %s: %v", channelName, v.VideoID, err)
		}

		// A follow-up edit right after posting is only worth it when the
		// slow samples grew the set.
		if len(all) > len(quickSet) {
			p.editExisting(ctx, v, false, channelName)
		}
	}

	total, err := p.store.TotalSamples(ctx, v.VideoID)
	if err == nil {
		logf("[%s] video %s: %d total samples", channelName, v.VideoID, total)
	}
}

// processFull is the non-fast path: the whole budget sequentially, then
// publish or edit, gated by the minimum-sample threshold for the very
// first post.
func (p *Processor) processFull(ctx context.Context, v store.Video, channelName string) {
	titles := p.titles.SampleTitles(ctx, v.VideoID, p.opts.SamplesPerRun, p.opts.SampleDelay)
	if len(titles) == 0 {
		logf("[%s] no titles found for %s", channelName, v.VideoID)
		return
	}
	p.recordSamples(ctx, v.VideoID, titles)

	set := distinct(titles)
	if err := p.store.UpdateTitleHistory(ctx, v.VideoID, set, store.DateOf(p.now())); err != nil {
		logf("[%s] %s: %v", channelName, v.VideoID, err)
	}

	total, err := p.store.TotalSamples(ctx, v.VideoID)
	if err != nil {
		logf("[%s] %s: %v", channelName, v.VideoID, err)
		return
	}
	logf("[%s] video %s: %d total samples, %d unique titles", channelName, v.VideoID, total, len(set))

	if p.comments == nil || v.IsIgnored {
		return
	}
	if total < p.opts.MinBeforePost {
		logf("[%s] skipping comment for %s (need %d+ samples)", channelName, v.VideoID, p.opts.MinBeforePost)
		return
	}

	finalized := p.stagnatedNow(ctx, v.VideoID)
	commentID, err := p.store.CommentID(ctx, v.VideoID)
	if err != nil {
		logf("[%s] %s: %v", channelName, v.VideoID, err)
		return
	}
	if commentID == "" {
		text, err := p.compose(ctx, v.VideoID, finalized)
		if err != nil {
			logf("[%s] %s: %v", channelName, v.VideoID, err)
			return
		}
		id, err := p.comments.Post(ctx, v.VideoID, text)
		switch {
		case errors.Is(err, comment.ErrQuota):
			logf("[%s] quota exceeded - skipping comment for %s", channelName, v.VideoID)
		case err != nil:
			logf("[%s] failed to post comment for %s: %v", channelName, v.VideoID, err)
		default:
			if err := p.store.SetCommentID(ctx, v.VideoID, id); err != nil {
				logf("[%s] %s: %v", channelName, v.VideoID, err)
			}
			logf("[%s] posted new comment for %s", channelName, v.VideoID)
		}
		return
	}
	p.editExisting(ctx, v, finalized, channelName)
}

// Recheck is the recurring activity check for one tracked video.
func (p *Processor) Recheck(ctx context.Context, v store.Video) {
	counts, err := p.store.DailyTitleCounts(ctx, v.VideoID, p.opts.InactiveDays)
	if err != nil {
		logf("recheck %s: %v", v.VideoID, err)
		return
	}
	if Stagnated(counts, p.opts.InactiveDays) {
		logf("video %s has stagnated (single title for %d+ sampled days) - marking inactive", v.VideoID, p.opts.InactiveDays)
		if err := p.store.MarkVideoInactive(ctx, v.VideoID); err != nil {
			logf("recheck %s: %v", v.VideoID, err)
			return
		}
		p.editExisting(ctx, v, true, v.ChannelID)
		return
	}

	if err := p.store.UpdateLastChecked(ctx, v.VideoID); err != nil {
		logf("recheck %s: %v", v.VideoID, err)
	}

	today := store.DateOf(p.now())
	current, err := p.store.UniqueTitlesForDate(ctx, v.VideoID, today)
	if err != nil {
		logf("recheck %s: %v", v.VideoID, err)
		return
	}
	if len(current) == 0 {
		titles := p.titles.SampleTitles(ctx, v.VideoID, p.opts.SamplesPerRun, p.opts.SampleDelay)
		if len(titles) > 0 {
			p.recordSamples(ctx, v.VideoID, titles)
			current = distinct(titles)
		}
	}
	if len(current) == 0 {
		return
	}

	history, err := p.store.TitleHistoryByDate(ctx, v.VideoID)
	if err != nil {
		logf("recheck %s: %v", v.VideoID, err)
		return
	}
	var previous []string
	for _, day := range history {
		if day.Date < today {
			previous = day.Titles
			break
		}
	}

	// Membership equality, not overlap: any added or removed title counts.
	if sameSet(current, previous) {
		return
	}
	logf("title change detected for %s: %v -> %v", v.VideoID, previous, current)

	if err := p.store.UpdateTitleHistory(ctx, v.VideoID, current, today); err != nil {
		logf("recheck %s: %v", v.VideoID, err)
		return
	}
	p.editExisting(ctx, v, p.stagnatedNow(ctx, v.VideoID), v.ChannelID)
}

// editExisting updates the video's comment if it has one. Once the
// comment is gone the video is permanently ignored: sampling continues
// but no write ever touches that comment identity again, and it is never
// recreated.
func (p *Processor) editExisting(ctx context.Context, v store.Video, finalized bool, who string) {
	if p.comments == nil || v.IsIgnored {
		return
	}
	commentID, err := p.store.CommentID(ctx, v.VideoID)
	if err != nil || commentID == "" {
		return
	}
	text, err := p.compose(ctx, v.VideoID, finalized)
	if err != nil {
		logf("[%s] %s: %v", who, v.VideoID, err)
		return
	}

	err = p.comments.Update(ctx, commentID, text)
	switch {
	case errors.Is(err, comment.ErrGone):
		logf("[%s] comment deleted for %s - marking as ignored", who, v.VideoID)
		if err := p.store.MarkVideoIgnored(ctx, v.VideoID); err != nil {
			logf("[%s] %s: %v", who, v.VideoID, err)
		}
	case errors.Is(err, comment.ErrQuota):
		logf("[%s] quota exceeded - skipping edit for %s", who, v.VideoID)
	case err != nil:
		logf("[%s] failed to update comment for %s: %v", who, v.VideoID, err)
	default:
		if err := p.store.MarkCommentEdited(ctx, v.VideoID); err != nil {
			logf("[%s] %s: %v", who, v.VideoID, err)
		}
		logf("[%s] updated comment for %s", who, v.VideoID)
	}
}

func (p *Processor) compose(ctx context.Context, videoID string, finalized bool) (string, error) {
	history, err := p.store.TitleHistoryByDate(ctx, videoID)
	if err != nil {
		return "", err
	}
	var stats []store.TitleCount
	if len(history) == 0 {
		if stats, err = p.store.TitleStats(ctx, videoID); err != nil {
			return "", err
		}
	}
	return Compose(p.intro(), history, stats, finalized), nil
}

// intro picks one of the configured preamble lines.
func (p *Processor) intro() string {
	if len(p.opts.Intros) == 0 {
		return "Tracking the titles YouTube shows for this video"
	}
	return p.opts.Intros[rand.Intn(len(p.opts.Intros))]
}

func (p *Processor) stagnatedNow(ctx context.Context, videoID string) bool {
	counts, err := p.store.DailyTitleCounts(ctx, videoID, p.opts.InactiveDays)
	if err != nil {
		return false
	}
	return Stagnated(counts, p.opts.InactiveDays)
}

func (p *Processor) recordSamples(ctx context.Context, videoID string, titles []string) {
	at := p.now()
	for _, title := range titles {
		if err := p.store.AddTitleSample(ctx, videoID, title, at); err != nil {
			logf("record sample %s: %v", videoID, err)
		}
	}
}
