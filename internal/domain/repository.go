package domain

import (
	"context"
	"time"
)

// MessageRepository defines persistence operations for direct messages.
type MessageRepository interface {
	// Create inserts m, filling ID-independent server fields. A repeated
	// (SenderID, ClientID) pair fails with ErrConflict.
	Create(ctx context.Context, m *Message) error
	GetByClientID(ctx context.Context, senderID, clientID string) (*Message, error)
	ListBetween(ctx context.Context, userA, userB string, page Page) ([]*Message, error)
	MarkConversationRead(ctx context.Context, readerID, otherUserID string, readAt time.Time) (int, error)
	ListConversations(ctx context.Context, userID string) ([]*ConversationSummary, error)
}

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id string) (*Notification, error)
	ListForRecipient(ctx context.Context, recipientID string, page Page) ([]*Notification, error)
	MarkRead(ctx context.Context, recipientID, id string) error
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	Delete(ctx context.Context, recipientID, id string) error
	DeleteAll(ctx context.Context, recipientID string) (int, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
}
