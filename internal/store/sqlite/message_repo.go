package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"travelmate/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

const messageColumns = `id, conversation_key, sender_id, receiver_id, body, attachment_url, attachment_kind, client_id, created_at, read_at`

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	var attURL, attKind *string
	if m.Attachment != nil {
		attURL, attKind = &m.Attachment.URL, &m.Attachment.Kind
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_key, sender_id, receiver_id, body, attachment_url, attachment_kind, client_id, created_at, read_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`, m.ID, m.ConversationKey, m.SenderID, m.ReceiverID, m.Body, attURL, attKind, m.ClientID, m.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert message: %w", domain.ErrConflict)
		}
		return wrapErr("insert message", err)
	}
	return nil
}

func (r *MessageRepo) GetByClientID(ctx context.Context, senderID, clientID string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE sender_id = ? AND client_id = ?
	`, senderID, clientID)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("get message by client id", err)
	}
	return m, nil
}

// ListBetween returns up to page.Limit messages of the {userA, userB}
// conversation older than page.Cursor, oldest first.
func (r *MessageRepo) ListBetween(ctx context.Context, userA, userB string, page domain.Page) ([]*domain.Message, error) {
	page = page.Normalize()
	key := domain.ConversationKey(userA, userB)

	var before int64
	if page.Cursor != "" {
		err := r.db.QueryRowContext(ctx, `
			SELECT seq FROM messages WHERE id = ? AND conversation_key = ?
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
		WHERE conversation_key = ? AND (? = 0 OR seq < ?)
		ORDER BY seq DESC
		LIMIT ?
	`, key, before, before, page.Limit)
	if err != nil {
		return nil, wrapErr("list messages", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, wrapErr("scan message", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list messages", err)
	}

	// Reverse to chronological order (query is DESC)
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

func (r *MessageRepo) MarkConversationRead(ctx context.Context, readerID, otherUserID string, readAt time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET read_at = ?
		WHERE receiver_id = ? AND sender_id = ? AND read_at IS NULL
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
		WITH mine AS (
			SELECT seq, `+messageColumns+`,
			       ROW_NUMBER() OVER (PARTITION BY conversation_key ORDER BY seq DESC) AS rn
			FROM messages
			WHERE sender_id = ? OR receiver_id = ?
		),
		unread AS (
			SELECT conversation_key, COUNT(*) AS n
			FROM messages
			WHERE receiver_id = ? AND read_at IS NULL
			GROUP BY conversation_key
		)
		SELECT mine.id, mine.conversation_key, mine.sender_id, mine.receiver_id, mine.body,
		       mine.attachment_url, mine.attachment_kind, mine.client_id, mine.created_at, mine.read_at,
		       COALESCE(unread.n, 0)
		FROM mine
		LEFT JOIN unread ON unread.conversation_key = mine.conversation_key
		WHERE mine.rn = 1
		ORDER BY mine.seq DESC
	`, userID, userID, userID)
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
