package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelmate/internal/domain"
	"travelmate/internal/presence"
	"travelmate/internal/service"
)

func TestConversationService_GetConversationList(t *testing.T) {
	st := newStores(t)
	reg := presence.NewRegistry(discardLogger())
	msgs := service.NewMessageService(st.messages, reg, nil, 100, discardLogger())
	ctx := context.Background()

	send := func(from, to, body string) {
		_, err := msgs.Send(ctx, service.SendInput{SenderID: from, ReceiverID: to, Body: body})
		require.NoError(t, err)
	}
	send("bob", "alice", "hi alice")
	send("alice", "bob", "hi bob")
	send("bob", "alice", "how are you")
	send("carol", "alice", "hello")

	connect(t, reg, "carol", "carol-1")

	profiles := stubProfiles{profiles: map[string]domain.Profile{
		"carol": {ID: "carol", Name: "Carol", AvatarURL: "/uploads/carol.png"},
	}}
	svc := service.NewConversationService(st.messages, reg, profiles, discardLogger())

	views, err := svc.GetConversationList(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "carol", views[0].Counterpart.ID)
	assert.Equal(t, "Carol", views[0].Counterpart.Name)
	assert.Equal(t, "/uploads/carol.png", views[0].Counterpart.AvatarURL)
	assert.True(t, views[0].Counterpart.Online)
	assert.Equal(t, 1, views[0].UnreadCount)
	assert.Equal(t, "hello", views[0].LastMessage.Body)

	assert.Equal(t, "bob", views[1].Counterpart.ID)
	assert.Equal(t, "bob", views[1].Counterpart.Name)
	assert.False(t, views[1].Counterpart.Online)
	assert.Equal(t, 2, views[1].UnreadCount)
	assert.Equal(t, "how are you", views[1].LastMessage.Body)

	t.Run("profile failure falls back to ids", func(t *testing.T) {
		svc := service.NewConversationService(st.messages, reg, stubProfiles{err: errors.New("down")}, discardLogger())
		views, err := svc.GetConversationList(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "carol", views[0].Counterpart.Name)
	})

	t.Run("no conversations", func(t *testing.T) {
		views, err := svc.GetConversationList(ctx, "dave")
		require.NoError(t, err)
		assert.NotNil(t, views)
		assert.Empty(t, views)
	})
}

func TestConversationService_StoreFailure(t *testing.T) {
	repo := new(MockMessageRepo)
	repo.On("ListConversations", context.Background(), "alice").Return(nil, domain.ErrTransientStore)

	svc := service.NewConversationService(repo, presence.NewRegistry(discardLogger()), nil, discardLogger())
	_, err := svc.GetConversationList(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrTransientStore)
}
