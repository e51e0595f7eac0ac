package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS issues (
	id           TEXT PRIMARY KEY,
	vendor_name  TEXT NOT NULL DEFAULT '',
	vendor_email TEXT NOT NULL,
	issue_type   TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'open',
	ai_activated INTEGER NOT NULL DEFAULT 0 CHECK(ai_activated IN (0, 1)),
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS communication_log (
	id               TEXT PRIMARY KEY,
	issue_id         TEXT NOT NULL REFERENCES issues(id),
	sender           TEXT NOT NULL CHECK(sender IN ('vendor', 'ai', 'human')),
	message_type     TEXT NOT NULL DEFAULT 'email',
	subject          TEXT NOT NULL DEFAULT '',
	body             TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL CHECK(status IN (
		'received', 'pending_approval', 'sent',
		'edited_sent', 'failed', 'discarded'
	)),
	email_from       TEXT NOT NULL DEFAULT '',
	email_to         TEXT NOT NULL DEFAULT '',
	email_message_id TEXT,
	email_thread_id  TEXT NOT NULL DEFAULT '',
	in_reply_to      TEXT NOT NULL DEFAULT '',
	ai_generated     INTEGER NOT NULL DEFAULT 0 CHECK(ai_generated IN (0, 1)),
	ai_confidence    REAL,
	approved_by      TEXT,
	approved_at      DATETIME,
	timestamp        DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_comm_log_message_id
	ON communication_log(email_message_id)
	WHERE email_message_id IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_comm_log_issue_id ON communication_log(issue_id);
CREATE INDEX IF NOT EXISTS idx_comm_log_status ON communication_log(status);
CREATE INDEX IF NOT EXISTS idx_comm_log_timestamp ON communication_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_comm_log_issue_status
	ON communication_log(issue_id, status);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
