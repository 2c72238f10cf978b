// Package comment posts and edits top-level YouTube comments through the
// Data API v3, authorized by an OAuth refresh token.
package comment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	tokenURL         = "https://oauth2.googleapis.com/token"
	commentThreadURL = "https://www.googleapis.com/youtube/v3/commentThreads?part=snippet"
	commentURL       = "https://www.googleapis.com/youtube/v3/comments?part=snippet"

	// API limit on textOriginal.
	maxCommentLen = 10000
)

var (
	// ErrQuota means the API quota is exhausted; the caller should skip
	// this cycle rather than retry immediately.
	ErrQuota = errors.New("comment: quota exceeded")

	// ErrGone means the target comment no longer exists (deleted
	// out-of-band); the caller must stop writing to this identity.
	ErrGone = errors.New("comment: target gone")
)

// Client talks to the YouTube comment endpoints.
type Client struct {
	http         *http.Client
	clientID     string
	clientSecret string
	refreshToken string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// New creates a comment client from OAuth refresh-token credentials.
func New(clientID, clientSecret, refreshToken string) *Client {
	return &Client{
		http:         &http.Client{Timeout: 30 * time.Second},
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
	}
}

// token exchanges the refresh token for an access token, caching it until
// shortly before expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	if c.clientID == "" || c.clientSecret == "" || c.refreshToken == "" {
		return "", fmt.Errorf("missing youtube oauth credentials")
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", c.refreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh token status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("empty access token")
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

// Post creates a top-level comment and returns its id.
func (c *Client) Post(ctx context.Context, videoID, text string) (string, error) {
	body := map[string]any{
		"snippet": map[string]any{
			"videoId": videoID,
			"topLevelComment": map[string]any{
				"snippet": map[string]any{
					"textOriginal": clip(text, maxCommentLen),
				},
			},
		},
	}

	status, respBody, err := c.call(ctx, http.MethodPost, commentThreadURL, body)
	if err != nil {
		return "", fmt.Errorf("post comment on %s: %w", videoID, err)
	}
	if status != http.StatusOK {
		if isQuotaError(status, respBody) {
			return "", fmt.Errorf("post comment on %s: %w", videoID, ErrQuota)
		}
		return "", fmt.Errorf("post comment on %s: status %d", videoID, status)
	}

	var result struct {
		Snippet struct {
			TopLevelComment struct {
				ID string `json:"id"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode comment response: %w", err)
	}
	if result.Snippet.TopLevelComment.ID == "" {
		return "", fmt.Errorf("post comment on %s: no comment id in response", videoID)
	}
	return result.Snippet.TopLevelComment.ID, nil
}

// Update edits an existing comment in place. A 404, or a 403 that is not
// quota-related, means the comment was deleted out-of-band and surfaces
// as ErrGone.
func (c *Client) Update(ctx context.Context, commentID, text string) error {
	body := map[string]any{
		"id": commentID,
		"snippet": map[string]any{
			"textOriginal": clip(text, maxCommentLen),
		},
	}

	status, respBody, err := c.call(ctx, http.MethodPut, commentURL, body)
	if err != nil {
		return fmt.Errorf("update comment %s: %w", commentID, err)
	}
	switch {
	case status == http.StatusOK:
		return nil
	case isQuotaError(status, respBody):
		return fmt.Errorf("update comment %s: %w", commentID, ErrQuota)
	case status == http.StatusNotFound || status == http.StatusForbidden:
		return fmt.Errorf("update comment %s: status %d: %w", commentID, status, ErrGone)
	default:
		return fmt.Errorf("update comment %s: status %d", commentID, status)
	}
}

func (c *Client) call(ctx context.Context, method, endpoint string, body any) (int, []byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return 0, nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func isQuotaError(status int, body []byte) bool {
	return status == http.StatusForbidden &&
		strings.Contains(strings.ToLower(string(body)), "quota")
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
