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

CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	position     INTEGER NOT NULL,
	type         TEXT NOT NULL DEFAULT 'custom',
	priority     TEXT NOT NULL DEFAULT 'normal',
	title        TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	is_read      INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	read_at      DATETIME,
	created_at   DATETIME NOT NULL,
	action_url   TEXT NOT NULL DEFAULT '',
	action_label TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_notifications_position ON notifications(position);
CREATE INDEX IF NOT EXISTS idx_notifications_is_read ON notifications(is_read);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS push_subscriptions (
	endpoint               TEXT PRIMARY KEY,
	p256dh                 TEXT NOT NULL,
	auth                   TEXT NOT NULL,
	application_server_key TEXT NOT NULL DEFAULT '',
	created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
