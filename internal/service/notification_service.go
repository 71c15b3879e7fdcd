package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"travelmate/internal/domain"
)

type NotificationService struct {
	notifications domain.NotificationRepository
	now           func() time.Time
}

func NewNotificationService(notifications domain.NotificationRepository) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type NotificationInput struct {
	RecipientID string                  `json:"recipient_id" validate:"required,max=128"`
	SenderID    *string                 `json:"sender_id,omitempty" validate:"omitempty,max=128"`
	Type        domain.NotificationType `json:"type" validate:"required"`
	Message     string                  `json:"message" validate:"required,max=1000"`
	Link        *string                 `json:"link,omitempty" validate:"omitempty,max=2048"`
	RelatedID   *string                 `json:"related_id,omitempty" validate:"omitempty,max=128"`
}

// build validates in and returns the notification to insert, with its ID
// fixed so retried inserts stay idempotent.
func (s *NotificationService) build(in NotificationInput) (*domain.Notification, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", domain.ErrValidation, in.Type)
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: notification message is empty", domain.ErrValidation)
	}
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if in.SenderID != nil && *in.SenderID == in.RecipientID {
		return nil, fmt.Errorf("%w: sender and recipient are the same user", domain.ErrValidation)
	}
	return &domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: in.RecipientID,
		SenderID:    in.SenderID,
		Type:        in.Type,
		Message:     in.Message,
		Link:        in.Link,
		RelatedID:   in.RelatedID,
		CreatedAt:   s.now(),
	}, nil
}

// Create validates and persists a notification without pushing it anywhere.
// Domain events should go through Dispatcher.Notify instead.
func (s *NotificationService) Create(ctx context.Context, in NotificationInput) (*domain.Notification, error) {
	n, err := s.build(in)
	if err != nil {
		return nil, err
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, recipientID string, page domain.Page) ([]*domain.Notification, error) {
	list, err := s.notifications.ListForRecipient(ctx, recipientID, page)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if list == nil {
		list = []*domain.Notification{}
	}
	return list, nil
}

// owned loads notification id and checks it belongs to recipientID.
func (s *NotificationService) owned(ctx context.Context, recipientID, id string) (*domain.Notification, error) {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if n.RecipientID != recipientID {
		return nil, fmt.Errorf("notification %s: %w", id, domain.ErrAuthorization)
	}
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id string) error {
	n, err := s.owned(ctx, recipientID, id)
	if err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	if err := s.notifications.MarkRead(ctx, recipientID, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	n, err := s.notifications.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, recipientID, id string) error {
	if _, err := s.owned(ctx, recipientID, id); err != nil {
		return err
	}
	if err := s.notifications.Delete(ctx, recipientID, id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

func (s *NotificationService) DeleteAll(ctx context.Context, recipientID string) (int, error) {
	n, err := s.notifications.DeleteAll(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return n, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	n, err := s.notifications.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}
