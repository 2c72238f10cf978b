package source

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

var ogURLPattern = regexp.MustCompile(`(?i)<meta\s+property=["']og:url["']\s+content=["']([^"']+)["']`)

// IsShort reports whether a video is a short-form upload. The feed does
// not say, so the video itself is probed: first a cheap HEAD against the
// /shorts/ URL, then the head of the watch page. Ambiguous signals
// default to long-form.
func (c *Client) IsShort(ctx context.Context, videoID string) bool {
	if c.shortsURLResolves(ctx, videoID) {
		return true
	}
	return c.watchPageSaysShort(ctx, videoID)
}

func (c *Client) shortsURLResolves(ctx context.Context, videoID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fmt.Sprintf(shortsURL, videoID), nil)
	if err != nil {
		return false
	}
	setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	// A long-form video redirects /shorts/ to /watch; a short stays put.
	if resp.StatusCode == http.StatusOK &&
		strings.Contains(strings.ToLower(resp.Request.URL.Path), "/shorts/") {
		return true
	}
	return false
}

func (c *Client) watchPageSaysShort(ctx context.Context, videoID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(watchURL, videoID), nil)
	if err != nil {
		return false
	}
	setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	// The <head> with og:url sits in the first 50KB.
	body, err := readLimited(resp.Body, 50_000)
	if err != nil {
		return false
	}
	page := strings.ToLower(string(body))

	if m := ogURLPattern.FindStringSubmatch(page); m != nil && strings.Contains(m[1], "/shorts/") {
		return true
	}
	return strings.Contains(page, `"isshorts":true`) || strings.Contains(page, `"isshort":true`)
}
