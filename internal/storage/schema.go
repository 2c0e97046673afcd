package storage

const schema = `
-- 'card_progress' mirrors the last CardProgress the backend returned per (user, card).
CREATE TABLE IF NOT EXISTS card_progress (
    user_id INTEGER NOT NULL,
    card_id INTEGER NOT NULL,
    progress_id INTEGER NOT NULL,
    confidence_score REAL NOT NULL DEFAULT 0,
    review_count INTEGER NOT NULL DEFAULT 0,
    last_reviewed_at DATETIME,
    cached_at DATETIME NOT NULL,

    PRIMARY KEY (user_id, card_id)
);

-- 'review_log' is an append-only record of reviews the backend accepted.
CREATE TABLE IF NOT EXISTS review_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    card_id INTEGER NOT NULL,
    confidence REAL NOT NULL,
    session_id TEXT NOT NULL,
    reviewed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_log_user ON review_log(user_id, reviewed_at);
`
