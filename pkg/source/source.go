package source

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	feedURL   = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"
	watchURL  = "https://www.youtube.com/watch?v=%s"
	shortsURL = "https://www.youtube.com/shorts/%s"
	videosURL = "https://www.youtube.com/channel/%s/videos"
)

// Browser-like so we might get the same A/B variant as real viewers.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// VideoRef is one entry from a channel's recent uploads. PublishedAt is
// zero when the fetch method could not supply a timestamp.
type VideoRef struct {
	ID          string
	PublishedAt time.Time
}

// Client fetches channel uploads and title snapshots.
type Client struct {
	http   *http.Client
	parser *gofeed.Parser
}

// NewClient creates a new sampling client.
func NewClient() *Client {
	return &Client{
		http:   &http.Client{Timeout: 15 * time.Second},
		parser: gofeed.NewParser(),
	}
}

// ChannelVideos returns a channel's recent uploads, newest first. The
// uploads Atom feed is tried first; if it fails or is empty, the channel
// videos page is scraped, which yields ids without publish timestamps.
func (c *Client) ChannelVideos(ctx context.Context, channelID string, max int) ([]VideoRef, error) {
	if max <= 0 {
		max = 50
	}

	refs, feedErr := c.videosFromFeed(ctx, channelID, max)
	if feedErr == nil && len(refs) > 0 {
		return refs, nil
	}
	if feedErr != nil {
		fmt.Printf("  feed failed for %s: %v, trying videos page\n", channelID, feedErr)
	}

	refs, pageErr := c.videosFromPage(ctx, channelID, max)
	if pageErr != nil {
		if feedErr != nil {
			return nil, fmt.Errorf("channel %s: feed: %v, page: %w", channelID, feedErr, pageErr)
		}
		return nil, fmt.Errorf("channel %s: %w", channelID, pageErr)
	}
	return refs, nil
}

func (c *Client) videosFromFeed(ctx context.Context, channelID string, max int) ([]VideoRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(feedURL, channelID), nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed status %d", resp.StatusCode)
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var refs []VideoRef
	for _, entry := range feed.Items {
		if len(refs) >= max {
			break
		}
		id := videoIDFromEntry(entry)
		if id == "" {
			continue
		}
		published := time.Time{}
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		}
		refs = append(refs, VideoRef{ID: id, PublishedAt: published})
	}
	return refs, nil
}

// videoIDFromEntry reads the yt:videoId extension, falling back to the
// entry GUID ("yt:video:<id>").
func videoIDFromEntry(entry *gofeed.Item) string {
	if ext, ok := entry.Extensions["yt"]; ok {
		if ids, ok := ext["videoId"]; ok && len(ids) > 0 {
			return ids[0].Value
		}
	}
	const guidPrefix = "yt:video:"
	if len(entry.GUID) > len(guidPrefix) && entry.GUID[:len(guidPrefix)] == guidPrefix {
		return entry.GUID[len(guidPrefix):]
	}
	return ""
}

var videoIDPattern = regexp.MustCompile(`"videoId":"([\w-]{11})"`)

// videosFromPage scrapes the channel videos tab. The tab lists long-form
// uploads only and carries no publish timestamps.
func (c *Client) videosFromPage(ctx context.Context, channelID string, max int) ([]VideoRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(videosURL, channelID), nil)
	if err != nil {
		return nil, fmt.Errorf("create page request: %w", err)
	}
	setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch videos page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("videos page status %d", resp.StatusCode)
	}

	body, err := readLimited(resp.Body, 2<<20)
	if err != nil {
		return nil, fmt.Errorf("read videos page: %w", err)
	}

	var refs []VideoRef
	seen := make(map[string]bool)
	for _, m := range videoIDPattern.FindAllStringSubmatch(string(body), -1) {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		refs = append(refs, VideoRef{ID: id})
		if len(refs) >= max {
			break
		}
	}
	return refs, nil
}

func setHeaders(req *http.Request) {
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
}
