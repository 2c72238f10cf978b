package comment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

// newTestEnv wires a client against a fake token + comments backend.
// commentStatus and commentBody control every non-token response.
func newTestEnv(t *testing.T) (*Client, *struct {
	tokenCalls   int
	commentCalls int
	status       int
	body         string
}) {
	t.Helper()
	state := &struct {
		tokenCalls   int
		commentCalls int
		status       int
		body         string
	}{status: http.StatusOK, body: `{}`}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		state.tokenCalls++
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})
	mux.HandleFunc("/youtube/v3/", func(w http.ResponseWriter, r *http.Request) {
		state.commentCalls++
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token on %s", r.URL.Path)
		}
		w.WriteHeader(state.status)
		w.Write([]byte(state.body))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	target, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}

	c := New("id", "secret", "refresh")
	c.http = &http.Client{Transport: rewriteTransport{target: target}, Timeout: 5 * time.Second}
	return c, state
}

func TestPost_ReturnsCommentID(t *testing.T) {
	c, state := newTestEnv(t)
	state.body = `{"snippet":{"topLevelComment":{"id":"cmt123"}}}`

	id, err := c.Post(context.Background(), "vid1", "hello")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if id != "cmt123" {
		t.Errorf("comment id = %q", id)
	}

	// The access token is cached across calls.
	if _, err := c.Post(context.Background(), "vid1", "again"); err != nil {
		t.Fatalf("second post: %v", err)
	}
	if state.tokenCalls != 1 {
		t.Errorf("token endpoint hit %d times, want 1", state.tokenCalls)
	}
}

func TestPost_QuotaError(t *testing.T) {
	c, state := newTestEnv(t)
	state.status = http.StatusForbidden
	state.body = `{"error":{"errors":[{"reason":"quotaExceeded"}]}}`

	_, err := c.Post(context.Background(), "vid1", "hello")
	if !errors.Is(err, ErrQuota) {
		t.Errorf("quota response gave %v, want ErrQuota", err)
	}
}

func TestUpdate_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"ok", http.StatusOK, `{}`, nil},
		{"not found is gone", http.StatusNotFound, `{}`, ErrGone},
		{"forbidden without quota is gone", http.StatusForbidden, `{"error":"comment disabled"}`, ErrGone},
		{"forbidden with quota is quota", http.StatusForbidden, `{"error":"quotaExceeded"}`, ErrQuota},
		{"server error is neither", http.StatusInternalServerError, `{}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, state := newTestEnv(t)
			state.status = tt.status
			state.body = tt.body

			err := c.Update(context.Background(), "cmt1", "text")
			switch {
			case tt.want != nil:
				if !errors.Is(err, tt.want) {
					t.Errorf("got %v, want %v", err, tt.want)
				}
			case tt.status == http.StatusOK:
				if err != nil {
					t.Errorf("got %v, want nil", err)
				}
			default:
				if err == nil || errors.Is(err, ErrGone) || errors.Is(err, ErrQuota) {
					t.Errorf("got %v, want plain error", err)
				}
			}
		})
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 100); got != "short" {
		t.Errorf("clip changed short text: %q", got)
	}
	long := strings.Repeat("x", 20)
	if got := clip(long, 10); got != strings.Repeat("x", 10) {
		t.Errorf("clip = %q", got)
	}
}

func TestMissingCredentials(t *testing.T) {
	c := New("", "", "")
	if _, err := c.Post(context.Background(), "vid1", "text"); err == nil {
		t.Error("post without credentials did not error")
	}
}
