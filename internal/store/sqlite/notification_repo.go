package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"travelmate/internal/domain"
)

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

var _ domain.NotificationRepository = (*NotificationRepo)(nil)

const notificationColumns = `id, recipient_id, sender_id, type, message, link, related_id, is_read, created_at`

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, sender_id, type, message, link, related_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.RecipientID, n.SenderID, string(n.Type), n.Message, n.Link, n.RelatedID, n.IsRead, n.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert notification: %w", domain.ErrConflict)
		}
		return wrapErr("insert notification", err)
	}
	return nil
}

func (r *NotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications WHERE id = ?
	`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("get notification", err)
	}
	return n, nil
}

// ListForRecipient returns notifications newest first, starting after
// page.Cursor.
func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID string, page domain.Page) ([]*domain.Notification, error) {
	page = page.Normalize()

	var before int64
	if page.Cursor != "" {
		err := r.db.QueryRowContext(ctx, `
			SELECT seq FROM notifications WHERE id = ? AND recipient_id = ?
		`, page.Cursor, recipientID).Scan(&before)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cursor %q: %w", page.Cursor, domain.ErrNotFound)
		}
		if err != nil {
			return nil, wrapErr("resolve cursor", err)
		}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE recipient_id = ? AND (? = 0 OR seq < ?)
		ORDER BY seq DESC
		LIMIT ?
	`, recipientID, before, before, page.Limit)
	if err != nil {
		return nil, wrapErr("list notifications", err)
	}
	defer rows.Close()

	var res []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, wrapErr("scan notification", err)
		}
		res = append(res, n)
	}
	return res, wrapErr("list notifications", rows.Err())
}

func (r *NotificationRepo) MarkRead(ctx context.Context, recipientID, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1
		WHERE id = ? AND recipient_id = ? AND is_read = 0
	`, id, recipientID)
	return wrapErr("mark notification read", err)
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1
		WHERE recipient_id = ? AND is_read = 0
	`, recipientID)
	return affected("mark all notifications read", res, err)
}

func (r *NotificationRepo) Delete(ctx context.Context, recipientID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM notifications WHERE id = ? AND recipient_id = ?
	`, id, recipientID)
	n, err := affected("delete notification", res, err)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *NotificationRepo) DeleteAll(ctx context.Context, recipientID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE recipient_id = ?`, recipientID)
	return affected("delete notifications", res, err)
}

func (r *NotificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0
	`, recipientID).Scan(&n)
	if err != nil {
		return 0, wrapErr("count unread notifications", err)
	}
	return n, nil
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	n := &domain.Notification{}
	var typ string
	if err := row.Scan(
		&n.ID, &n.RecipientID, &n.SenderID, &typ, &n.Message,
		&n.Link, &n.RelatedID, &n.IsRead, &n.CreatedAt,
	); err != nil {
		return nil, err
	}
	n.Type = domain.NotificationType(typ)
	return n, nil
}

func affected(op string, res sql.Result, err error) (int, error) {
	if err != nil {
		return 0, wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(op, err)
	}
	return int(n), nil
}
