package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

// DSN builds a modernc.org/sqlite DSN for the database file at path with the
// pragmas the repositories rely on.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_time_format", "sqlite")
	return "file:" + path + "?" + q.Encode()
}

// Open opens a SQLite database with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL for the messages and notifications collections.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			seq              INTEGER PRIMARY KEY AUTOINCREMENT,
			id               TEXT     NOT NULL UNIQUE,
			conversation_key TEXT     NOT NULL,
			sender_id        TEXT     NOT NULL,
			receiver_id      TEXT     NOT NULL,
			body             TEXT     NOT NULL DEFAULT '',
			attachment_url   TEXT     DEFAULT NULL,
			attachment_kind  TEXT     DEFAULT NULL,
			client_id        TEXT     DEFAULT NULL,
			created_at       DATETIME NOT NULL,
			read_at          DATETIME DEFAULT NULL,
			CHECK (sender_id <> receiver_id)
		);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			id           TEXT     NOT NULL UNIQUE,
			recipient_id TEXT     NOT NULL,
			sender_id    TEXT     DEFAULT NULL,
			type         TEXT     NOT NULL,
			message      TEXT     NOT NULL,
			link         TEXT     DEFAULT NULL,
			related_id   TEXT     DEFAULT NULL,
			is_read      BOOLEAN  NOT NULL DEFAULT 0,
			created_at   DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_seq ON messages(conversation_key, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(receiver_id, sender_id) WHERE read_at IS NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_client_id ON messages(sender_id, client_id);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient_seq ON notifications(recipient_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(recipient_id) WHERE is_read = 0;`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
