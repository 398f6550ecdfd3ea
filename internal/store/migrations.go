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

CREATE TABLE IF NOT EXISTS task_list (
	local_id    INTEGER PRIMARY KEY AUTOINCREMENT,
	remote_id   TEXT UNIQUE,
	etag        TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL,
	last_update DATETIME NOT NULL,
	sorting     TEXT NOT NULL DEFAULT 'manual'
		CHECK(sorting IN ('manual', 'duedate', 'title'))
);

CREATE TABLE IF NOT EXISTS task (
	local_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	remote_id        TEXT UNIQUE,
	list_local_id    INTEGER NOT NULL
		REFERENCES task_list(local_id) ON DELETE CASCADE,
	parent_local_id  INTEGER
		REFERENCES task(local_id) ON DELETE CASCADE,
	parent_remote_id TEXT,
	etag             TEXT NOT NULL DEFAULT '',
	title            TEXT NOT NULL,
	notes            TEXT NOT NULL DEFAULT '',
	due_date         DATETIME,
	last_update      DATETIME NOT NULL,
	completed_at     DATETIME,
	completed        INTEGER NOT NULL DEFAULT 0 CHECK(completed IN (0, 1)),
	position         TEXT NOT NULL CHECK(length(position) = 20)
);

CREATE INDEX IF NOT EXISTS idx_task_list_remote_id ON task_list(remote_id);
CREATE INDEX IF NOT EXISTS idx_task_remote_id ON task(remote_id);
CREATE INDEX IF NOT EXISTS idx_task_list_local_id ON task(list_local_id);
CREATE INDEX IF NOT EXISTS idx_task_parent_local_id ON task(parent_local_id);
CREATE INDEX IF NOT EXISTS idx_task_position ON task(list_local_id, position);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS tombstone (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	kind           TEXT NOT NULL CHECK(kind IN ('list', 'task')),
	list_remote_id TEXT NOT NULL DEFAULT '',
	remote_id      TEXT NOT NULL,
	deleted_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_state (
	id        INTEGER PRIMARY KEY CHECK(id = 1),
	last_sync DATETIME
);

INSERT INTO sync_state (id, last_sync) VALUES (1, NULL);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
