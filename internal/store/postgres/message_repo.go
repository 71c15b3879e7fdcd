package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"travelmate/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageColumns = `id::text, conversation_key, sender_id, receiver_id, body, attachment_url, attachment_kind, client_id, created_at, read_at`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	var attURL, attKind *string
	if m.Attachment != nil {
		attURL, attKind = &m.Attachment.URL, &m.Attachment.Kind
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO messages
			(id, conversation_key, sender_id, receiver_id, body, attachment_url, attachment_kind, client_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, m.ID, m.ConversationKey, m.SenderID, m.ReceiverID, m.Body,
		attURL, attKind, m.ClientID, m.CreatedAt.UTC(),
	).Scan(&m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert message: %w", domain.ErrConflict)
		}
		return wrapErr("insert message", err)
	}
	return nil
}

func (r *MessageRepo) GetByClientID(ctx context.Context, senderID, clientID string) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE sender_id = $1 AND client_id = $2
	`, senderID, clientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("get message by client id", err)
	}
	return m, nil
}

func (r *MessageRepo) ListBetween(ctx context.Context, userA, userB string, page domain.Page) ([]*domain.Message, error) {
	page = page.Normalize()
	key := domain.ConversationKey(userA, userB)

	var before int64
	if page.Cursor != "" {
		if uuid.Validate(page.Cursor) != nil {
			return nil, fmt.Errorf("cursor %q: %w", page.Cursor, domain.ErrNotFound)
		}
		err := r.db.QueryRowContext(ctx, `
			SELECT seq FROM messages WHERE id = $1 AND conversation_key = $2
		`, page.Cursor, key).Scan(&before)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cursor %q: %w", page.Cursor, domain.ErrNotFound)
		}
		if err != nil {
			return nil, wrapErr("resolve cursor", err)
		}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_key = $1 AND ($2::bigint = 0 OR seq < $2)
		ORDER BY seq DESC
		LIMIT $3
	`, key, before, page.Limit)
	if err != nil {
		return nil, wrapErr("list messages", err)
	}
	res, err := r.scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order (query is DESC)
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

func (r *MessageRepo) MarkConversationRead(ctx context.Context, readerID, otherUserID string, readAt time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET read_at = $1
		WHERE receiver_id = $2 AND sender_id = $3 AND read_at IS NULL
	`, readAt.UTC(), readerID, otherUserID)
	if err != nil {
		return 0, wrapErr("mark conversation read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr("rows affected", err)
	}
	return int(n), nil
}

func (r *MessageRepo) ListConversations(ctx context.Context, userID string) ([]*domain.ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH last AS (
			SELECT DISTINCT ON (conversation_key) seq, `+messageColumns+`
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
			ORDER BY conversation_key, seq DESC
		),
		unread AS (
			SELECT conversation_key, COUNT(*) AS n
			FROM messages
			WHERE receiver_id = $1 AND read_at IS NULL
			GROUP BY conversation_key
		)
		SELECT last.id, last.conversation_key, last.sender_id, last.receiver_id, last.body,
		       last.attachment_url, last.attachment_kind, last.client_id, last.created_at, last.read_at,
		       COALESCE(unread.n, 0)
		FROM last
		LEFT JOIN unread ON unread.conversation_key = last.conversation_key
		ORDER BY last.seq DESC
	`, userID)
	if err != nil {
		return nil, wrapErr("list conversations", err)
	}
	defer rows.Close()

	var res []*domain.ConversationSummary
	for rows.Next() {
		var unread int
		m, err := scanMessage(rows, &unread)
		if err != nil {
			return nil, wrapErr("scan conversation", err)
		}
		res = append(res, &domain.ConversationSummary{
			CounterpartID: m.Counterpart(userID),
			LastMessage:   m,
			UnreadCount:   unread,
		})
	}
	return res, wrapErr("list conversations", rows.Err())
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner, extra ...any) (*domain.Message, error) {
	m := &domain.Message{}
	var attURL, attKind sql.NullString
	dest := []any{
		&m.ID, &m.ConversationKey, &m.SenderID, &m.ReceiverID, &m.Body,
		&attURL, &attKind, &m.ClientID, &m.CreatedAt, &m.ReadAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if attURL.Valid {
		m.Attachment = &domain.Attachment{URL: attURL.String, Kind: attKind.String}
	}
	return m, nil
}

func (r *MessageRepo) scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	defer rows.Close()
	var res []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, wrapErr("scan message", err)
		}
		res = append(res, m)
	}
	return res, wrapErr("list messages", rows.Err())
}
