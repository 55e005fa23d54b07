package store

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA temp_store = MEMORY;

CREATE TABLE IF NOT EXISTS keywords (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    text           TEXT NOT NULL UNIQUE,
    raw_volume     INTEGER NOT NULL DEFAULT 0,
    comp_idx       TEXT NOT NULL DEFAULT 'medium',
    comp_score     INTEGER NOT NULL DEFAULT 60,
    ad_depth       INTEGER NOT NULL DEFAULT 0,
    has_ads        INTEGER NOT NULL DEFAULT 0,
    est_cpc_krw    INTEGER,
    est_cpc_source TEXT NOT NULL DEFAULT 'unknown',
    score          INTEGER NOT NULL DEFAULT 0,
    excluded       INTEGER NOT NULL DEFAULT 0,
    source         TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMP NOT NULL,
    updated_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_keywords_score ON keywords(score);
CREATE INDEX IF NOT EXISTS idx_keywords_volume ON keywords(raw_volume);
CREATE INDEX IF NOT EXISTS idx_keywords_updated ON keywords(updated_at);
CREATE INDEX IF NOT EXISTS idx_keywords_excluded ON keywords(excluded);
`
