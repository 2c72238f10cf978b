package store

const schema = `
CREATE TABLE IF NOT EXISTS channels (
    channel_id   TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS videos (
    video_id               TEXT PRIMARY KEY,
    channel_id             TEXT NOT NULL REFERENCES channels(channel_id),
    published_at           DATETIME NOT NULL,
    is_short               BOOLEAN NOT NULL DEFAULT 0,
    is_active              BOOLEAN NOT NULL DEFAULT 1,
    is_ignored             BOOLEAN NOT NULL DEFAULT 0,
    is_deleted             BOOLEAN NOT NULL DEFAULT 0,
    comment_id             TEXT,
    comment_posted_at      DATETIME,
    comment_last_edited_at DATETIME,
    last_checked_at        DATETIME,
    created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_videos_channel ON videos(channel_id);
CREATE INDEX IF NOT EXISTS idx_videos_published ON videos(published_at);
CREATE INDEX IF NOT EXISTS idx_videos_active ON videos(is_active);
CREATE INDEX IF NOT EXISTS idx_videos_ignored ON videos(is_ignored);
CREATE INDEX IF NOT EXISTS idx_videos_deleted ON videos(is_deleted);

CREATE TABLE IF NOT EXISTS title_samples (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id    TEXT NOT NULL REFERENCES videos(video_id) ON DELETE CASCADE,
    title_text  TEXT NOT NULL,
    sample_date TEXT NOT NULL,
    sampled_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_samples_video ON title_samples(video_id);
CREATE INDEX IF NOT EXISTS idx_samples_date ON title_samples(video_id, sample_date);

CREATE TABLE IF NOT EXISTS title_history (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id        TEXT NOT NULL REFERENCES videos(video_id) ON DELETE CASCADE,
    title_text      TEXT NOT NULL,
    first_seen_date TEXT NOT NULL,
    last_seen_date  TEXT NOT NULL,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(video_id, title_text, first_seen_date)
);

CREATE INDEX IF NOT EXISTS idx_history_video ON title_history(video_id);
CREATE INDEX IF NOT EXISTS idx_history_date ON title_history(first_seen_date);
`
