package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elonfeng/titlewatch/internal/store"
)

// Server provides the read-only status HTTP API.
type Server struct {
	store store.Store
	port  int
}

// New creates a new HTTP server.
func New(s store.Store, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{store: s, port: port}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/videos", s.handleVideos)
	mux.HandleFunc("/api/v1/videos/", s.handleVideo)
	mux.HandleFunc("/api/v1/stats", s.handleStats)

	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("titlewatch server listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sums, err := s.store.VideoSummaries(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	views := make([]videoView, len(sums))
	for i := range sums {
		views[i] = newVideoView(&sums[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  views,
		"count": len(views),
	})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	videoID := strings.TrimPrefix(r.URL.Path, "/api/v1/videos/")
	if videoID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing video id"})
		return
	}

	info, err := s.store.VideoInfo(r.Context(), videoID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if info == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "video not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": newVideoView(info)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sums, err := s.store.VideoSummaries(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	stats := struct {
		TotalVideos        int `json:"total_videos"`
		ActiveVideos       int `json:"active_videos"`
		IgnoredVideos      int `json:"ignored_videos"`
		DeletedVideos      int `json:"deleted_videos"`
		Shorts             int `json:"shorts"`
		VideosWithComments int `json:"videos_with_comments"`
	}{TotalVideos: len(sums)}

	for i := range sums {
		v := &sums[i]
		switch {
		case v.IsShort:
			stats.Shorts++
		case v.IsIgnored:
			stats.IgnoredVideos++
		case v.IsDeleted:
			stats.DeletedVideos++
		case v.IsActive:
			stats.ActiveVideos++
		}
		if v.CommentID.Valid {
			stats.VideosWithComments++
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

// videoView is the JSON shape of one video summary.
type videoView struct {
	VideoID             string     `json:"video_id"`
	ChannelID           string     `json:"channel_id"`
	ChannelName         string     `json:"channel_name"`
	PublishedAt         time.Time  `json:"published_at"`
	IsShort             bool       `json:"is_short"`
	IsActive            bool       `json:"is_active"`
	IsIgnored           bool       `json:"is_ignored"`
	IsDeleted           bool       `json:"is_deleted"`
	CommentID           string     `json:"comment_id,omitempty"`
	CommentPostedAt     *time.Time `json:"comment_posted_at,omitempty"`
	CommentLastEditedAt *time.Time `json:"comment_last_edited_at,omitempty"`
	LastCheckedAt       *time.Time `json:"last_checked_at,omitempty"`
	UniqueTitles        int        `json:"unique_titles"`
	TotalSamples        int        `json:"total_samples"`
}

func newVideoView(s *store.VideoSummary) videoView {
	view := videoView{
		VideoID:      s.VideoID,
		ChannelID:    s.ChannelID,
		ChannelName:  s.ChannelName,
		PublishedAt:  s.PublishedAt,
		IsShort:      s.IsShort,
		IsActive:     s.IsActive,
		IsIgnored:    s.IsIgnored,
		IsDeleted:    s.IsDeleted,
		CommentID:    s.CommentID.String,
		UniqueTitles: s.UniqueTitles,
		TotalSamples: s.TotalSamples,
	}
	if s.CommentPostedAt.Valid {
		view.CommentPostedAt = &s.CommentPostedAt.Time
	}
	if s.CommentLastEditedAt.Valid {
		view.CommentLastEditedAt = &s.CommentLastEditedAt.Time
	}
	if s.LastCheckedAt.Valid {
		view.LastCheckedAt = &s.LastCheckedAt.Time
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
