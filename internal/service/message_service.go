package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/moby/locker"

	"travelmate/internal/domain"
)

var validate = validator.New()

// Notifier persists and delivers a notification; Dispatcher implements it.
type Notifier interface {
	Notify(ctx context.Context, in NotificationInput) (*domain.Notification, error)
}

type MessageService struct {
	messages domain.MessageRepository
	presence Presence
	notifier Notifier
	locks    *locker.Locker
	now      func() time.Time
	log      *slog.Logger

	MaxBodyLength int
}

// NewMessageService builds the message service. notifier may be nil, in which
// case offline receivers get no message-arrived notification.
func NewMessageService(
	messages domain.MessageRepository,
	presence Presence,
	notifier Notifier,
	maxBodyLength int,
	log *slog.Logger,
) *MessageService {
	return &MessageService{
		messages:      messages,
		presence:      presence,
		notifier:      notifier,
		locks:         locker.New(),
		now:           func() time.Time { return time.Now().UTC() },
		log:           log,
		MaxBodyLength: maxBodyLength,
	}
}

type SendInput struct {
	SenderID   string
	ReceiverID string
	Body       string
	Attachment *domain.Attachment
	// ClientID is an optional sender-chosen key; resending the same key
	// returns the stored message instead of creating a second one.
	ClientID string
	// OriginConnID is the connection the send came from, if any. It gets
	// its own ack and is skipped by the multi-device fan-out.
	OriginConnID string
}

func (s *MessageService) validateSend(in SendInput) error {
	if in.SenderID == "" || in.ReceiverID == "" {
		return fmt.Errorf("%w: sender and receiver are required", domain.ErrValidation)
	}
	if in.SenderID == in.ReceiverID {
		return fmt.Errorf("%w: cannot send a message to yourself", domain.ErrValidation)
	}
	if strings.TrimSpace(in.Body) == "" && in.Attachment == nil {
		return fmt.Errorf("%w: message body is empty", domain.ErrValidation)
	}
	if s.MaxBodyLength > 0 && utf8.RuneCountInString(in.Body) > s.MaxBodyLength {
		return fmt.Errorf("%w: message exceeds %d characters", domain.ErrValidation, s.MaxBodyLength)
	}
	if in.Attachment != nil {
		if err := validate.Struct(in.Attachment); err != nil {
			return fmt.Errorf("%w: attachment: %v", domain.ErrValidation, err)
		}
	}
	if len(in.ClientID) > 128 {
		return fmt.Errorf("%w: client_id is too long", domain.ErrValidation)
	}
	return nil
}

// Send persists a message and then pushes it to the receiver's live
// connections and to the sender's other connections. Nothing is pushed
// unless the insert succeeded.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	if err := s.validateSend(in); err != nil {
		return nil, err
	}

	if in.ClientID != "" {
		existing, err := s.messages.GetByClientID(ctx, in.SenderID, in.ClientID)
		switch {
		case err == nil:
			return existing, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("lookup client id: %w", err)
		}
	}

	msg, dup, err := s.persistAndPush(ctx, in)
	if err != nil {
		return nil, err
	}
	if dup {
		return msg, nil
	}

	if s.notifier != nil && !s.presence.IsOnline(msg.ReceiverID) {
		s.notifyOffline(ctx, msg)
	}
	return msg, nil
}

func (s *MessageService) persistAndPush(ctx context.Context, in SendInput) (*domain.Message, bool, error) {
	key := domain.ConversationKey(in.SenderID, in.ReceiverID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	msg := &domain.Message{
		ID:              uuid.NewString(),
		ConversationKey: key,
		SenderID:        in.SenderID,
		ReceiverID:      in.ReceiverID,
		Body:            in.Body,
		Attachment:      in.Attachment,
		CreatedAt:       s.now(),
	}
	if in.ClientID != "" {
		clientID := in.ClientID
		msg.ClientID = &clientID
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		if errors.Is(err, domain.ErrConflict) && in.ClientID != "" {
			existing, getErr := s.messages.GetByClientID(ctx, in.SenderID, in.ClientID)
			if getErr != nil {
				return nil, false, fmt.Errorf("lookup client id: %w", getErr)
			}
			return existing, true, nil
		}
		return nil, false, fmt.Errorf("persist message: %w", err)
	}

	ev := domain.Event{Type: domain.EventNewMessage, Payload: msg}
	s.presence.SendToUser(msg.ReceiverID, ev)
	if in.OriginConnID != "" {
		s.presence.SendToUser(msg.SenderID, ev, in.OriginConnID)
	} else {
		s.presence.SendToUser(msg.SenderID, ev)
	}
	return msg, false, nil
}

func (s *MessageService) notifyOffline(ctx context.Context, msg *domain.Message) {
	sender := msg.SenderID
	link := "/messages/" + msg.SenderID
	related := msg.ID
	_, err := s.notifier.Notify(ctx, NotificationInput{
		RecipientID: msg.ReceiverID,
		SenderID:    &sender,
		Type:        domain.NotificationMessageArrived,
		Message:     "You have a new message",
		Link:        &link,
		RelatedID:   &related,
	})
	if err != nil {
		s.log.Warn("offline message notification failed",
			"message_id", msg.ID, "receiver_id", msg.ReceiverID, "error", err)
	}
}

// ListMessages returns a page of the conversation between userID and
// otherUserID, oldest first.
func (s *MessageService) ListMessages(ctx context.Context, userID, otherUserID string, page domain.Page) ([]*domain.Message, error) {
	if otherUserID == "" || otherUserID == userID {
		return nil, fmt.Errorf("%w: invalid counterpart", domain.ErrValidation)
	}
	msgs, err := s.messages.ListBetween(ctx, userID, otherUserID, page)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return msgs, nil
}

// MarkConversationRead marks every unread message otherUserID sent to
// readerID as read and returns how many changed. When something changed, a
// messages_read receipt goes to both participants' live connections.
func (s *MessageService) MarkConversationRead(ctx context.Context, readerID, otherUserID string) (int, error) {
	if otherUserID == "" || otherUserID == readerID {
		return 0, fmt.Errorf("%w: invalid counterpart", domain.ErrValidation)
	}
	readAt := s.now()
	n, err := s.messages.MarkConversationRead(ctx, readerID, otherUserID, readAt)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	if n > 0 {
		ev := domain.Event{Type: domain.EventMessagesRead, Payload: domain.MessagesReadPayload{
			ReaderID:      readerID,
			CounterpartID: otherUserID,
			Count:         n,
			ReadAt:        readAt,
		}}
		s.presence.SendToUser(otherUserID, ev)
		s.presence.SendToUser(readerID, ev)
	}
	return n, nil
}

func (s *MessageService) ListConversations(ctx context.Context, userID string) ([]*domain.ConversationSummary, error) {
	convs, err := s.messages.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}
