package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelmate/internal/domain"
)

func newNotification(recipient string, typ domain.NotificationType, msg string) *domain.Notification {
	return &domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipient,
		Type:        typ,
		Message:     msg,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestNotificationRepo_CreateAndList(t *testing.T) {
	repo := NewNotificationRepo(newTestDB(t))
	ctx := context.Background()

	sender := "alice"
	link := "/friends/alice"
	first := newNotification("bob", domain.NotificationFriendRequest, "alice wants to be friends")
	first.SenderID = &sender
	first.Link = &link
	require.NoError(t, repo.Create(ctx, first))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newNotification("bob", domain.NotificationBookingStatusChanged, fmt.Sprintf("booking %d", i))))
	}
	require.NoError(t, repo.Create(ctx, newNotification("carol", domain.NotificationActivityCreated, "not bob's")))

	list, err := repo.ListForRecipient(ctx, "bob", domain.Page{Limit: 3})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "booking 2", list[0].Message)
	assert.Equal(t, "booking 0", list[2].Message)

	rest, err := repo.ListForRecipient(ctx, "bob", domain.Page{Limit: 3, Cursor: list[2].ID})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, first.ID, rest[0].ID)
	assert.Equal(t, domain.NotificationFriendRequest, rest[0].Type)
	require.NotNil(t, rest[0].SenderID)
	assert.Equal(t, "alice", *rest[0].SenderID)
	assert.Equal(t, link, *rest[0].Link)
	assert.Nil(t, rest[0].RelatedID)
	assert.False(t, rest[0].IsRead)

	_, err = repo.ListForRecipient(ctx, "carol", domain.Page{Cursor: first.ID})
	assert.ErrorIs(t, err, domain.ErrNotFound, "cursor owned by another recipient")
}

func TestNotificationRepo_ReadState(t *testing.T) {
	repo := NewNotificationRepo(newTestDB(t))
	ctx := context.Background()

	a := newNotification("bob", domain.NotificationFriendAccepted, "a")
	b := newNotification("bob", domain.NotificationFriendAccepted, "b")
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	n, err := repo.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, repo.MarkRead(ctx, "bob", a.ID))
	require.NoError(t, repo.MarkRead(ctx, "bob", a.ID))
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	updated, err := repo.MarkAllRead(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	updated, err = repo.MarkAllRead(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, updated)

	n, err = repo.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNotificationRepo_Delete(t *testing.T) {
	repo := NewNotificationRepo(newTestDB(t))
	ctx := context.Background()

	a := newNotification("bob", domain.NotificationActivityDeleted, "a")
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, newNotification("bob", domain.NotificationActivityDeleted, "b")))
	require.NoError(t, repo.Create(ctx, newNotification("carol", domain.NotificationActivityDeleted, "c")))

	assert.ErrorIs(t, repo.Delete(ctx, "carol", a.ID), domain.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "bob", a.ID))
	_, err := repo.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := repo.DeleteAll(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := repo.ListForRecipient(ctx, "carol", domain.Page{})
	require.NoError(t, err)
	assert.Len(t, left, 1)
}
