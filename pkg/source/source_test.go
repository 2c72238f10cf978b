package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// rewriteTransport points every request at the test server regardless of
// the hard-coded host.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return &Client{
		http:   &http.Client{Transport: rewriteTransport{target: target}, Timeout: 5 * time.Second},
		parser: gofeed.NewParser(),
	}
}

const uploadsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
  <title>Channel uploads</title>
  <entry>
    <id>yt:video:newvideo001</id>
    <yt:videoId>newvideo001</yt:videoId>
    <title>Newest upload</title>
    <published>2026-02-10T12:00:00+00:00</published>
  </entry>
  <entry>
    <id>yt:video:oldvideo002</id>
    <yt:videoId>oldvideo002</yt:videoId>
    <title>Older upload</title>
    <published>2026-02-09T08:30:00+00:00</published>
  </entry>
</feed>`

func TestChannelVideos_FromFeed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/feeds/videos.xml") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(uploadsFeed))
	}))

	refs, err := c.ChannelVideos(context.Background(), "UCtest", 50)
	if err != nil {
		t.Fatalf("channel videos: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2", len(refs))
	}
	if refs[0].ID != "newvideo001" || refs[1].ID != "oldvideo002" {
		t.Errorf("ids = %s, %s", refs[0].ID, refs[1].ID)
	}
	want := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	if !refs[0].PublishedAt.Equal(want) {
		t.Errorf("published = %v, want %v", refs[0].PublishedAt, want)
	}
}

func TestChannelVideos_PageFallback(t *testing.T) {
	page := `<html><script>var data = {"videoId":"pagevideo01","x":1}
		{"videoId":"pagevideo01"} {"videoId":"pagevideo02"}</script></html>`

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/feeds/") {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		w.Write([]byte(page))
	}))

	refs, err := c.ChannelVideos(context.Background(), "UCtest", 50)
	if err != nil {
		t.Fatalf("channel videos: %v", err)
	}
	// Duplicate ids collapse; timestamps are unavailable from the page.
	if len(refs) != 2 {
		t.Fatalf("got %v, want 2 deduplicated refs", refs)
	}
	if refs[0].ID != "pagevideo01" || refs[1].ID != "pagevideo02" {
		t.Errorf("ids = %s, %s", refs[0].ID, refs[1].ID)
	}
	if !refs[0].PublishedAt.IsZero() {
		t.Errorf("page-scraped ref has timestamp %v", refs[0].PublishedAt)
	}
}

func TestVideoIDFromEntry(t *testing.T) {
	withExt := &gofeed.Item{
		GUID: "yt:video:fromguid001",
		Extensions: ext.Extensions{
			"yt": {"videoId": {{Value: "fromext0001"}}},
		},
	}
	if got := videoIDFromEntry(withExt); got != "fromext0001" {
		t.Errorf("extension id = %q, want fromext0001", got)
	}

	guidOnly := &gofeed.Item{GUID: "yt:video:fromguid001"}
	if got := videoIDFromEntry(guidOnly); got != "fromguid001" {
		t.Errorf("guid fallback = %q, want fromguid001", got)
	}

	if got := videoIDFromEntry(&gofeed.Item{GUID: "unrelated"}); got != "" {
		t.Errorf("unparseable entry = %q, want empty", got)
	}
}

func TestIsShort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/shorts/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/shorts/")
		if id == "realshort01" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/watch?v="+id, http.StatusFound)
	})
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") == "hiddenshort" {
			w.Write([]byte(`<head><meta property="og:url" content="https://www.youtube.com/shorts/hiddenshort"></head>`))
			return
		}
		w.Write([]byte(`<head><meta property="og:url" content="https://www.youtube.com/watch?v=x"></head>`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	if !c.IsShort(ctx, "realshort01") {
		t.Error("short not detected from shorts URL")
	}
	if c.IsShort(ctx, "longform001") {
		t.Error("long-form video classified as short")
	}
	// Some shorts redirect away but still declare themselves on the page.
	if !c.IsShort(ctx, "hiddenshort") {
		t.Error("short not detected from watch page markers")
	}
}

func TestParseTitle(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
		ok   bool
	}{
		{
			"og:title",
			`<meta property="og:title" content="The Real Title">`,
			"The Real Title", true,
		},
		{
			"og:title reversed attributes",
			`<meta content="Reversed" property="og:title">`,
			"Reversed", true,
		},
		{
			"html entities unescaped",
			`<meta property="og:title" content="Rock &amp; Roll">`,
			"Rock & Roll", true,
		},
		{
			"title tag",
			`<head><title>Some Video - YouTube</title></head>`,
			"Some Video", true,
		},
		{
			"player json runs",
			`{"title":{"runs":[{"text":"From JSON"}]}}`,
			"From JSON", true,
		},
		{
			"no title anywhere",
			`<html><body>consent wall</body></html>`,
			"", false,
		},
		{
			"empty og:title falls through",
			`<head><meta property="og:title" content=" "><title>Fallback - YouTube</title></head>`,
			"Fallback", true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTitle(tt.page)
			if got != tt.want || ok != tt.ok {
				t.Errorf("parseTitle = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
