package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DateLayout is the calendar-date format used for sample and history
// bucketing. ISO dates compare correctly as strings.
const DateLayout = "2006-01-02"

// DateOf returns the UTC calendar date of t in DateLayout.
func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Video is one tracked content unit. Flag transitions are one-way and go
// through the Mark* store operations, never through raw updates.
type Video struct {
	VideoID             string         `db:"video_id"`
	ChannelID           string         `db:"channel_id"`
	PublishedAt         time.Time      `db:"published_at"`
	IsShort             bool           `db:"is_short"`
	IsActive            bool           `db:"is_active"`
	IsIgnored           bool           `db:"is_ignored"`
	IsDeleted           bool           `db:"is_deleted"`
	CommentID           sql.NullString `db:"comment_id"`
	CommentPostedAt     sql.NullTime   `db:"comment_posted_at"`
	CommentLastEditedAt sql.NullTime   `db:"comment_last_edited_at"`
	LastCheckedAt       sql.NullTime   `db:"last_checked_at"`
	CreatedAt           time.Time      `db:"created_at"`
}

// TitleCount is one distinct title with its raw sample count.
type TitleCount struct {
	Title string `db:"title_text"`
	Count int    `db:"cnt"`
}

// DayCount is the number of distinct titles observed on one sampled date.
type DayCount struct {
	Date       string `db:"sample_date"`
	TitleCount int    `db:"title_count"`
}

// HistoryDay is the set of titles first recorded on one date.
type HistoryDay struct {
	Date   string
	Titles []string
}

// HistoryEntry is one raw title_history row.
type HistoryEntry struct {
	VideoID       string `db:"video_id"`
	Title         string `db:"title_text"`
	FirstSeenDate string `db:"first_seen_date"`
	LastSeenDate  string `db:"last_seen_date"`
}

// VideoSummary is a video joined with its channel name and sample counts,
// used by the status API and the videos command.
type VideoSummary struct {
	Video
	ChannelName  string `db:"channel_name"`
	UniqueTitles int    `db:"unique_titles"`
	TotalSamples int    `db:"total_samples"`
}

// Store is the persistence interface.
type Store interface {
	UpsertChannel(ctx context.Context, channelID, displayName string) error

	AddVideo(ctx context.Context, v *Video) (bool, error)
	GetVideo(ctx context.Context, videoID string) (*Video, error)
	KnownVideoIDs(ctx context.Context, channelID string, limit int) ([]string, error)
	ActiveVideos(ctx context.Context) ([]Video, error)
	VideosWithoutComment(ctx context.Context) ([]Video, error)
	MarkVideoInactive(ctx context.Context, videoID string) error
	MarkVideoIgnored(ctx context.Context, videoID string) error
	MarkVideoDeleted(ctx context.Context, videoID string) error
	UpdateLastChecked(ctx context.Context, videoID string) error

	AddTitleSample(ctx context.Context, videoID, title string, sampledAt time.Time) error
	TotalSamples(ctx context.Context, videoID string) (int, error)
	TitleStats(ctx context.Context, videoID string) ([]TitleCount, error)
	UniqueTitlesForDate(ctx context.Context, videoID, date string) ([]string, error)
	DailyTitleCounts(ctx context.Context, videoID string, limit int) ([]DayCount, error)

	UpdateTitleHistory(ctx context.Context, videoID string, titles []string, date string) error
	TitleHistoryByDate(ctx context.Context, videoID string) ([]HistoryDay, error)

	CommentID(ctx context.Context, videoID string) (string, error)
	SetCommentID(ctx context.Context, videoID, commentID string) error
	MarkCommentEdited(ctx context.Context, videoID string) error

	VideoSummaries(ctx context.Context) ([]VideoSummary, error)
	VideoInfo(ctx context.Context, videoID string) (*VideoSummary, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertChannel(ctx context.Context, channelID, displayName string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (channel_id, display_name)
		VALUES (?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET display_name = excluded.display_name
	`, channelID, displayName)
	if err != nil {
		return fmt.Errorf("upsert channel %s: %w", channelID, err)
	}
	return nil
}

// AddVideo inserts a video if absent and reports whether a row was
// created. This is the sole concurrency-control point for discovery:
// overlapping scans race on the insert and exactly one of them wins.
func (s *SQLiteStore) AddVideo(ctx context.Context, v *Video) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (video_id, channel_id, published_at, is_short, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO NOTHING
	`, v.VideoID, v.ChannelID, v.PublishedAt, v.IsShort, v.IsActive, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("add video %s: %w", v.VideoID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add video %s: %w", v.VideoID, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	var v Video
	err := s.db.GetContext(ctx, &v, "SELECT * FROM videos WHERE video_id = ?", videoID)
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", videoID, err)
	}
	return &v, nil
}

func (s *SQLiteStore) KnownVideoIDs(ctx context.Context, channelID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT video_id FROM videos WHERE channel_id = ? ORDER BY published_at DESC LIMIT ?",
		channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("known videos %s: %w", channelID, err)
	}
	return ids, nil
}

// ActiveVideos lists videos due for the recurring re-check. Ignored
// videos stay in the list so their samples and history keep growing;
// only their comment is off limits.
func (s *SQLiteStore) ActiveVideos(ctx context.Context) ([]Video, error) {
	var vids []Video
	err := s.db.SelectContext(ctx, &vids, `
		SELECT * FROM videos
		WHERE is_active = 1 AND is_deleted = 0 AND is_short = 0 AND comment_id IS NOT NULL
		ORDER BY published_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("active videos: %w", err)
	}
	return vids, nil
}

// VideosWithoutComment lists live long-form videos that never got their
// first comment, so startup can retry them.
func (s *SQLiteStore) VideosWithoutComment(ctx context.Context) ([]Video, error) {
	var vids []Video
	err := s.db.SelectContext(ctx, &vids, `
		SELECT * FROM videos
		WHERE is_active = 1 AND is_ignored = 0 AND is_deleted = 0 AND is_short = 0
		  AND comment_id IS NULL
		ORDER BY published_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("videos without comment: %w", err)
	}
	return vids, nil
}

func (s *SQLiteStore) MarkVideoInactive(ctx context.Context, videoID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE videos SET is_active = 0 WHERE video_id = ?", videoID)
	if err != nil {
		return fmt.Errorf("mark inactive %s: %w", videoID, err)
	}
	return nil
}

func (s *SQLiteStore) MarkVideoIgnored(ctx context.Context, videoID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE videos SET is_ignored = 1 WHERE video_id = ?", videoID)
	if err != nil {
		return fmt.Errorf("mark ignored %s: %w", videoID, err)
	}
	return nil
}

func (s *SQLiteStore) MarkVideoDeleted(ctx context.Context, videoID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE videos SET is_deleted = 1 WHERE video_id = ?", videoID)
	if err != nil {
		return fmt.Errorf("mark deleted %s: %w", videoID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateLastChecked(ctx context.Context, videoID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE videos SET last_checked_at = ? WHERE video_id = ?",
		time.Now().UTC(), videoID)
	if err != nil {
		return fmt.Errorf("update last checked %s: %w", videoID, err)
	}
	return nil
}

func (s *SQLiteStore) AddTitleSample(ctx context.Context, videoID, title string, sampledAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO title_samples (video_id, title_text, sample_date, sampled_at)
		VALUES (?, ?, ?, ?)
	`, videoID, title, DateOf(sampledAt), sampledAt.UTC())
	if err != nil {
		return fmt.Errorf("add sample %s: %w", videoID, err)
	}
	return nil
}

func (s *SQLiteStore) TotalSamples(ctx context.Context, videoID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM title_samples WHERE video_id = ?", videoID)
	if err != nil {
		return 0, fmt.Errorf("total samples %s: %w", videoID, err)
	}
	return n, nil
}

func (s *SQLiteStore) TitleStats(ctx context.Context, videoID string) ([]TitleCount, error) {
	var stats []TitleCount
	err := s.db.SelectContext(ctx, &stats, `
		SELECT title_text, COUNT(*) AS cnt
		FROM title_samples WHERE video_id = ?
		GROUP BY title_text ORDER BY cnt DESC, title_text
	`, videoID)
	if err != nil {
		return nil, fmt.Errorf("title stats %s: %w", videoID, err)
	}
	return stats, nil
}

func (s *SQLiteStore) UniqueTitlesForDate(ctx context.Context, videoID, date string) ([]string, error) {
	var titles []string
	err := s.db.SelectContext(ctx, &titles, `
		SELECT DISTINCT title_text FROM title_samples
		WHERE video_id = ? AND sample_date = ?
		ORDER BY title_text
	`, videoID, date)
	if err != nil {
		return nil, fmt.Errorf("titles for date %s %s: %w", videoID, date, err)
	}
	return titles, nil
}

// DailyTitleCounts returns the distinct-title count per sampled date,
// newest date first, limited to the most recent limit sampled dates.
// Dates without samples do not appear.
func (s *SQLiteStore) DailyTitleCounts(ctx context.Context, videoID string, limit int) ([]DayCount, error) {
	var days []DayCount
	err := s.db.SelectContext(ctx, &days, `
		SELECT sample_date, COUNT(DISTINCT title_text) AS title_count
		FROM title_samples WHERE video_id = ?
		GROUP BY sample_date ORDER BY sample_date DESC LIMIT ?
	`, videoID, limit)
	if err != nil {
		return nil, fmt.Errorf("daily counts %s: %w", videoID, err)
	}
	return days, nil
}

// UpdateTitleHistory records that each title was seen on date. Repeat
// sightings of a (video, title, date) triple only extend last_seen_date,
// never create a second row.
func (s *SQLiteStore) UpdateTitleHistory(ctx context.Context, videoID string, titles []string, date string) error {
	for _, title := range titles {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO title_history (video_id, title_text, first_seen_date, last_seen_date)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(video_id, title_text, first_seen_date)
			DO UPDATE SET last_seen_date = MAX(last_seen_date, excluded.last_seen_date)
		`, videoID, title, date, date)
		if err != nil {
			return fmt.Errorf("update history %s: %w", videoID, err)
		}
	}
	return nil
}

// TitleHistoryByDate returns history grouped by first-seen date, newest
// date first, titles sorted within each date. Built from one date-sorted
// query so the composer never depends on map iteration order.
func (s *SQLiteStore) TitleHistoryByDate(ctx context.Context, videoID string) ([]HistoryDay, error) {
	var rows []HistoryEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT video_id, title_text, first_seen_date, last_seen_date
		FROM title_history WHERE video_id = ?
		ORDER BY first_seen_date DESC, title_text
	`, videoID)
	if err != nil {
		return nil, fmt.Errorf("title history %s: %w", videoID, err)
	}

	var days []HistoryDay
	for _, r := range rows {
		if len(days) == 0 || days[len(days)-1].Date != r.FirstSeenDate {
			days = append(days, HistoryDay{Date: r.FirstSeenDate})
		}
		last := &days[len(days)-1]
		last.Titles = append(last.Titles, r.Title)
	}
	return days, nil
}

// CommentID returns the video's comment id, or "" if none was posted yet.
func (s *SQLiteStore) CommentID(ctx context.Context, videoID string) (string, error) {
	var id sql.NullString
	err := s.db.GetContext(ctx, &id,
		"SELECT comment_id FROM videos WHERE video_id = ?", videoID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("comment id %s: %w", videoID, err)
	}
	return id.String, nil
}

func (s *SQLiteStore) SetCommentID(ctx context.Context, videoID, commentID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE videos SET comment_id = ?, comment_posted_at = ? WHERE video_id = ?",
		commentID, time.Now().UTC(), videoID)
	if err != nil {
		return fmt.Errorf("set comment id %s: %w", videoID, err)
	}
	return nil
}

func (s *SQLiteStore) MarkCommentEdited(ctx context.Context, videoID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE videos SET comment_last_edited_at = ? WHERE video_id = ?",
		time.Now().UTC(), videoID)
	if err != nil {
		return fmt.Errorf("mark comment edited %s: %w", videoID, err)
	}
	return nil
}

const summarySelect = `
	SELECT v.*, c.display_name AS channel_name,
	       COUNT(DISTINCT ts.title_text) AS unique_titles,
	       COUNT(ts.id) AS total_samples
	FROM videos v
	JOIN channels c ON v.channel_id = c.channel_id
	LEFT JOIN title_samples ts ON v.video_id = ts.video_id
`

func (s *SQLiteStore) VideoSummaries(ctx context.Context) ([]VideoSummary, error) {
	var sums []VideoSummary
	err := s.db.SelectContext(ctx, &sums,
		summarySelect+" GROUP BY v.video_id ORDER BY v.published_at DESC")
	if err != nil {
		return nil, fmt.Errorf("video summaries: %w", err)
	}
	return sums, nil
}

func (s *SQLiteStore) VideoInfo(ctx context.Context, videoID string) (*VideoSummary, error) {
	var sum VideoSummary
	err := s.db.GetContext(ctx, &sum,
		summarySelect+" WHERE v.video_id = ? GROUP BY v.video_id", videoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("video info %s: %w", videoID, err)
	}
	return &sum, nil
}
