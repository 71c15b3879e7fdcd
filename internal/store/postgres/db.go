package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the messaging schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Messages
		`CREATE TABLE IF NOT EXISTS messages (
			seq              BIGSERIAL    PRIMARY KEY,
			id               UUID         NOT NULL UNIQUE,
			conversation_key TEXT         NOT NULL,
			sender_id        TEXT         NOT NULL,
			receiver_id      TEXT         NOT NULL,
			body             TEXT         NOT NULL DEFAULT '',
			attachment_url   TEXT,
			attachment_kind  TEXT,
			client_id        TEXT,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			read_at          TIMESTAMPTZ,
			CONSTRAINT messages_distinct_participants CHECK (sender_id <> receiver_id)
		)`,

		// Notifications
		`CREATE TABLE IF NOT EXISTS notifications (
			seq          BIGSERIAL    PRIMARY KEY,
			id           UUID         NOT NULL UNIQUE,
			recipient_id TEXT         NOT NULL,
			sender_id    TEXT,
			type         TEXT         NOT NULL,
			message      TEXT         NOT NULL,
			link         TEXT,
			related_id   TEXT,
			is_read      BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_seq ON messages(conversation_key, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(receiver_id, sender_id) WHERE read_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_client_id ON messages(sender_id, client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient_seq ON notifications(recipient_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(recipient_id) WHERE NOT is_read`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
