package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create widget configs and conversations",
		SQL: `
			CREATE TABLE widget_configs (
				id          TEXT PRIMARY KEY,
				name        TEXT NOT NULL DEFAULT '',
				agent_id    TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE conversations (
				id              TEXT PRIMARY KEY,
				config_id       TEXT NOT NULL DEFAULT '',
				agent_id        TEXT NOT NULL,
				owner_token     TEXT NOT NULL,
				started_at      TEXT NOT NULL,
				ended_at        TEXT,
				duration_secs   REAL NOT NULL DEFAULT 0,
				total_turns     INTEGER NOT NULL DEFAULT 0,
				interruptions   INTEGER NOT NULL DEFAULT 0,
				sentiment_sum   REAL NOT NULL DEFAULT 0,
				sentiment_count INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_conversations_started ON conversations (started_at);
			CREATE INDEX idx_conversations_config ON conversations (config_id);

			CREATE TABLE messages (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				role            TEXT NOT NULL,
				content         TEXT NOT NULL,
				timestamp       TEXT NOT NULL,
				score           REAL,
				comparative     REAL,
				mood            TEXT
			);

			CREATE INDEX idx_messages_conversation ON messages (conversation_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create metrics and feedback",
		SQL: `
			CREATE TABLE conversation_metrics (
				conversation_id          TEXT PRIMARY KEY REFERENCES conversations(id) ON DELETE CASCADE,
				avg_response_time        REAL NOT NULL,
				user_engagement_score    REAL NOT NULL,
				completion_rate          REAL NOT NULL,
				successful_interruptions INTEGER NOT NULL DEFAULT 0,
				failed_interruptions     INTEGER NOT NULL DEFAULT 0
			);

			CREATE TABLE conversation_feedback (
				id              TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				rating          INTEGER NOT NULL,
				feedback        TEXT NOT NULL DEFAULT '',
				sentiment       TEXT NOT NULL DEFAULT '',
				created_at      TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_feedback_created ON conversation_feedback (created_at);
		`,
	},
}
