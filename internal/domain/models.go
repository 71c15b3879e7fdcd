package domain

import "time"

// Attachment is a reference to media owned by the media collaborator. Only
// the reference is persisted.
type Attachment struct {
	URL  string `json:"url" validate:"required,max=2048"`
	Kind string `json:"kind" validate:"required,oneof=image video audio file"`
}

// Message is a single direct message between two users.
type Message struct {
	ID              string      `json:"id"`
	ConversationKey string      `json:"conversation_key"`
	SenderID        string      `json:"sender_id"`
	ReceiverID      string      `json:"receiver_id"`
	Body            string      `json:"body"`
	Attachment      *Attachment `json:"attachment,omitempty"`
	ClientID        *string     `json:"client_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	ReadAt          *time.Time  `json:"read_at,omitempty"`
}

// ConversationKey returns the order-independent key of the pair {a, b}.
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Counterpart returns the participant of m that is not userID.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// ConversationSummary is one row of a user's conversation list as the store
// computes it.
type ConversationSummary struct {
	CounterpartID string   `json:"counterpart_id"`
	LastMessage   *Message `json:"last_message"`
	UnreadCount   int      `json:"unread_count"`
}

// Counterpart is the render-ready description of the other participant.
type Counterpart struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Online    bool   `json:"online"`
}

// ConversationView is a ConversationSummary joined with profile and
// presence data.
type ConversationView struct {
	Counterpart Counterpart `json:"counterpart"`
	LastMessage *Message    `json:"last_message"`
	UnreadCount int         `json:"unread_count"`
}

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotificationMessageArrived       NotificationType = "message-arrived"
	NotificationFriendRequest        NotificationType = "friend-request"
	NotificationFriendAccepted       NotificationType = "friend-accepted"
	NotificationActivityCreated      NotificationType = "activity-created"
	NotificationActivityCancelled    NotificationType = "activity-cancelled"
	NotificationActivityDeleted      NotificationType = "activity-deleted"
	NotificationBookingStatusChanged NotificationType = "booking-status-changed"
)

var notificationTypes = map[NotificationType]struct{}{
	NotificationMessageArrived:       {},
	NotificationFriendRequest:        {},
	NotificationFriendAccepted:       {},
	NotificationActivityCreated:      {},
	NotificationActivityCancelled:    {},
	NotificationActivityDeleted:      {},
	NotificationBookingStatusChanged: {},
}

// Valid reports whether t belongs to the recognized set.
func (t NotificationType) Valid() bool {
	_, ok := notificationTypes[t]
	return ok
}

// Notification is a user-facing event record.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	SenderID    *string          `json:"sender_id,omitempty"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	Link        *string          `json:"link,omitempty"`
	RelatedID   *string          `json:"related_id,omitempty"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Page selects a window of a recency-ordered listing. Cursor is the ID of the
// last item the caller already has; an empty cursor starts from the newest.
type Page struct {
	Cursor string
	Limit  int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Normalize clamps the limit into [1, MaxPageLimit].
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}
