package source

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

var titlePatterns = []*regexp.Regexp{
	// og:title, attribute order and quote style vary across renders.
	regexp.MustCompile(`<meta\s+property="og:title"\s+content="([^"]+)"`),
	regexp.MustCompile(`<meta\s+content="([^"]+)"\s+property="og:title"`),
	regexp.MustCompile(`<meta\s+property='og:title'\s+content='([^']+)'`),
	// <title>... - YouTube</title>
	regexp.MustCompile(`(?is)<title>([^<]+)\s*-\s*YouTube</title>`),
	// Embedded player JSON.
	regexp.MustCompile(`"runs":\s*\[\s*\{\s*"text":\s*"((?:[^"\\]|\\.)*)"`),
	regexp.MustCompile(`"simpleText":\s*"((?:[^"\\]|\\.)*)"`),
}

// parseTitle extracts the displayed title from watch page HTML.
func parseTitle(page string) (string, bool) {
	for _, pat := range titlePatterns {
		if m := pat.FindStringSubmatch(page); m != nil {
			title := strings.TrimSpace(html.UnescapeString(m[1]))
			if title != "" {
				return title, true
			}
		}
	}
	return "", false
}

// FetchTitle takes one best-effort snapshot of the currently displayed
// title. Failures of any kind report no title, never an error.
func (c *Client) FetchTitle(ctx context.Context, videoID string) (string, bool) {
	if title, ok := c.titleFromWatchPage(ctx, videoID); ok {
		return title, true
	}
	// Third-party fallback; may not reflect the A/B variant but yields a title.
	return c.titleFromNoembed(ctx, videoID)
}

func (c *Client) titleFromWatchPage(ctx context.Context, videoID string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(watchURL, videoID), nil)
	if err != nil {
		return "", false
	}
	setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	body, err := readLimited(resp.Body, 2<<20)
	if err != nil {
		return "", false
	}
	return parseTitle(string(body))
}

func (c *Client) titleFromNoembed(ctx context.Context, videoID string) (string, bool) {
	url := "https://noembed.com/embed?url=" + fmt.Sprintf(watchURL, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false
	}
	setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var data struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", false
	}
	title := strings.TrimSpace(data.Title)
	return title, title != ""
}

// SampleTitles fetches the title count times sequentially with a delay
// between fetches. Failed fetches are simply skipped.
func (c *Client) SampleTitles(ctx context.Context, videoID string, count int, delay time.Duration) []string {
	var titles []string
	for i := 0; i < count; i++ {
		if title, ok := c.FetchTitle(ctx, videoID); ok {
			titles = append(titles, title)
		}
		if i < count-1 {
			select {
			case <-ctx.Done():
				return titles
			case <-time.After(delay):
			}
		}
	}
	return titles
}

// SampleTitlesParallel fetches count title snapshots concurrently. Used
// only on the fast path for brand-new videos, where time to the first
// comment matters more than politeness.
func (c *Client) SampleTitlesParallel(ctx context.Context, videoID string, count int) []string {
	results := make([]string, count)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			if title, ok := c.FetchTitle(ctx, videoID); ok {
				results[i] = title
			}
			return nil
		})
	}
	g.Wait()

	var titles []string
	for _, t := range results {
		if t != "" {
			titles = append(titles, t)
		}
	}
	return titles
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
