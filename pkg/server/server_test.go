package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/elonfeng/titlewatch/internal/store"
)

func newServerWithData(t *testing.T) *Server {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	if err := s.UpsertChannel(ctx, "ch1", "Test Channel"); err != nil {
		t.Fatalf("upsert channel: %v", err)
	}
	published := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	for _, v := range []store.Video{
		{VideoID: "vid1", ChannelID: "ch1", PublishedAt: published, IsActive: true},
		{VideoID: "short1", ChannelID: "ch1", PublishedAt: published, IsShort: true},
	} {
		if _, err := s.AddVideo(ctx, &v); err != nil {
			t.Fatalf("add video: %v", err)
		}
	}
	if err := s.SetCommentID(ctx, "vid1", "cmt1"); err != nil {
		t.Fatalf("set comment: %v", err)
	}
	for _, title := range []string{"A", "B", "A"} {
		if err := s.AddTitleSample(ctx, "vid1", title, published.Add(9*time.Hour)); err != nil {
			t.Fatalf("add sample: %v", err)
		}
	}
	return New(s, 0)
}

func TestHandleVideos(t *testing.T) {
	srv := newServerWithData(t)

	rec := httptest.NewRecorder()
	srv.handleVideos(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Count int `json:"count"`
		Data  []struct {
			VideoID      string `json:"video_id"`
			ChannelName  string `json:"channel_name"`
			UniqueTitles int    `json:"unique_titles"`
			TotalSamples int    `json:"total_samples"`
			CommentID    string `json:"comment_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Data) != 2 {
		t.Fatalf("count = %d, data %v", resp.Count, resp.Data)
	}
	if resp.Data[0].ChannelName != "Test Channel" {
		t.Errorf("channel name = %q", resp.Data[0].ChannelName)
	}

	rec = httptest.NewRecorder()
	srv.handleVideos(rec, httptest.NewRequest(http.MethodPost, "/api/v1/videos", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", rec.Code)
	}
}

func TestHandleVideo(t *testing.T) {
	srv := newServerWithData(t)

	rec := httptest.NewRecorder()
	srv.handleVideo(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos/vid1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			VideoID      string `json:"video_id"`
			CommentID    string `json:"comment_id"`
			UniqueTitles int    `json:"unique_titles"`
			TotalSamples int    `json:"total_samples"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.VideoID != "vid1" || resp.Data.CommentID != "cmt1" {
		t.Errorf("data = %+v", resp.Data)
	}
	if resp.Data.UniqueTitles != 2 || resp.Data.TotalSamples != 3 {
		t.Errorf("counts = %d/%d, want 2/3", resp.Data.UniqueTitles, resp.Data.TotalSamples)
	}

	rec = httptest.NewRecorder()
	srv.handleVideo(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown video status = %d", rec.Code)
	}
}

func TestHandleStats(t *testing.T) {
	srv := newServerWithData(t)

	rec := httptest.NewRecorder()
	srv.handleStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var stats struct {
		TotalVideos        int `json:"total_videos"`
		ActiveVideos       int `json:"active_videos"`
		Shorts             int `json:"shorts"`
		VideosWithComments int `json:"videos_with_comments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalVideos != 2 || stats.ActiveVideos != 1 || stats.Shorts != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.VideosWithComments != 1 {
		t.Errorf("videos with comments = %d", stats.VideosWithComments)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newServerWithData(t)

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("health = %v", body)
	}
}
