package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"travelmate/internal/domain"
	"travelmate/internal/presence"
	"travelmate/internal/service"
)

type messageFixture struct {
	stores   stores
	registry *presence.Registry
	svc      *service.MessageService
	notes    *service.NotificationService
}

func newMessageFixture(t *testing.T, withNotifier bool) messageFixture {
	t.Helper()
	st := newStores(t)
	reg := presence.NewRegistry(discardLogger())
	notes := service.NewNotificationService(st.notifications)
	var notifier service.Notifier
	if withNotifier {
		notifier = service.NewDispatcher(notes, reg, 3, 0, discardLogger())
	}
	return messageFixture{
		stores:   st,
		registry: reg,
		svc:      service.NewMessageService(st.messages, reg, notifier, 20, discardLogger()),
		notes:    notes,
	}
}

func TestMessageService_SendValidation(t *testing.T) {
	f := newMessageFixture(t, false)
	ctx := context.Background()

	cases := map[string]service.SendInput{
		"empty body":     {SenderID: "alice", ReceiverID: "bob", Body: "   "},
		"self send":      {SenderID: "alice", ReceiverID: "alice", Body: "hi"},
		"missing sender": {ReceiverID: "bob", Body: "hi"},
		"too long":       {SenderID: "alice", ReceiverID: "bob", Body: strings.Repeat("é", 21)},
		"bad attachment": {SenderID: "alice", ReceiverID: "bob", Attachment: &domain.Attachment{URL: "/uploads/x", Kind: "exe"}},
		"long client id": {SenderID: "alice", ReceiverID: "bob", Body: "hi", ClientID: strings.Repeat("c", 129)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Send(ctx, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	t.Run("attachment without body", func(t *testing.T) {
		msg, err := f.svc.Send(ctx, service.SendInput{
			SenderID:   "alice",
			ReceiverID: "bob",
			Attachment: &domain.Attachment{URL: "/uploads/a.png", Kind: "image"},
		})
		require.NoError(t, err)
		assert.Equal(t, "", msg.Body)
		require.NotNil(t, msg.Attachment)
		assert.Equal(t, "image", msg.Attachment.Kind)
	})

	t.Run("body at the limit counts runes", func(t *testing.T) {
		_, err := f.svc.Send(ctx, service.SendInput{SenderID: "alice", ReceiverID: "bob", Body: strings.Repeat("é", 20)})
		assert.NoError(t, err)
	})
}

func TestMessageService_SendPushesToReceiverAndOtherTabs(t *testing.T) {
	f := newMessageFixture(t, false)
	ctx := context.Background()

	bob1 := connect(t, f.registry, "bob", "bob-1")
	bob2 := connect(t, f.registry, "bob", "bob-2")
	aliceOrigin := connect(t, f.registry, "alice", "alice-1")
	aliceOther := connect(t, f.registry, "alice", "alice-2")

	msg, err := f.svc.Send(ctx, service.SendInput{
		SenderID:     "alice",
		ReceiverID:   "bob",
		Body:         "hello",
		OriginConnID: "alice-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationKey("alice", "bob"), msg.ConversationKey)

	for _, c := range []*recorder{bob1, bob2, aliceOther} {
		got := c.ofType(domain.EventNewMessage)
		require.Len(t, got, 1, c.id)
		assert.Equal(t, msg.ID, got[0].Payload.(*domain.Message).ID)
	}
	assert.Empty(t, aliceOrigin.events())
}

func TestMessageService_LiveOrderMatchesPersistedOrder(t *testing.T) {
	f := newMessageFixture(t, false)
	ctx := context.Background()
	bob := connect(t, f.registry, "bob", "bob-1")

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := "alice"
			if i%2 == 1 {
				sender = "carol"
			}
			_, err := f.svc.Send(ctx, service.SendInput{SenderID: sender, ReceiverID: "bob", Body: fmt.Sprintf("m%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	live := map[string][]string{}
	for _, ev := range bob.ofType(domain.EventNewMessage) {
		m := ev.Payload.(*domain.Message)
		live[m.SenderID] = append(live[m.SenderID], m.ID)
	}

	for _, sender := range []string{"alice", "carol"} {
		stored, err := f.svc.ListMessages(ctx, "bob", sender, domain.Page{Limit: n})
		require.NoError(t, err)
		ids := make([]string, 0, len(stored))
		for _, m := range stored {
			ids = append(ids, m.ID)
		}
		assert.Equal(t, ids, live[sender], sender)
	}
}

func TestMessageService_ListMessagesOrderAndPaging(t *testing.T) {
	f := newMessageFixture(t, false)
	ctx := context.Background()

	var sent []*domain.Message
	for i := 0; i < 5; i++ {
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		m, err := f.svc.Send(ctx, service.SendInput{SenderID: from, ReceiverID: to, Body: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
		sent = append(sent, m)
	}

	latest, err := f.svc.ListMessages(ctx, "alice", "bob", domain.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, []string{"m3", "m4"}, []string{latest[0].Body, latest[1].Body})

	older, err := f.svc.ListMessages(ctx, "bob", "alice", domain.Page{Cursor: latest[0].ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, older, 3)
	assert.Equal(t, sent[0].ID, older[0].ID)

	empty, err := f.svc.ListMessages(ctx, "alice", "dave", domain.Page{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = f.svc.ListMessages(ctx, "alice", "alice", domain.Page{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMessageService_MarkConversationReadIsIdempotent(t *testing.T) {
	f := newMessageFixture(t, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Send(ctx, service.SendInput{SenderID: "alice", ReceiverID: "bob", Body: "hi"})
		require.NoError(t, err)
	}
	_, err := f.svc.Send(ctx, service.SendInput{SenderID: "bob", ReceiverID: "alice", Body: "yo"})
	require.NoError(t, err)

	alice := connect(t, f.registry, "alice", "alice-1")

	n, err := f.svc.MarkConversationRead(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	receipts := alice.ofType(domain.EventMessagesRead)
	require.Len(t, receipts, 1)
	payload := receipts[0].Payload.(domain.MessagesReadPayload)
	assert.Equal(t, "bob", payload.ReaderID)
	assert.Equal(t, 3, payload.Count)

	n, err = f.svc.MarkConversationRead(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, alice.ofType(domain.EventMessagesRead), 1)

	convs, err := f.svc.ListConversations(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 0, convs[0].UnreadCount)

	convs, err = f.svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].UnreadCount)
}

func TestMessageService_ClientIDSuppressesDuplicates(t *testing.T) {
	f := newMessageFixture(t, false)
	ctx := context.Background()
	bob := connect(t, f.registry, "bob", "bob-1")

	in := service.SendInput{SenderID: "alice", ReceiverID: "bob", Body: "once", ClientID: "c-1"}
	first, err := f.svc.Send(ctx, in)
	require.NoError(t, err)
	second, err := f.svc.Send(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, bob.ofType(domain.EventNewMessage), 1)

	msgs, err := f.svc.ListMessages(ctx, "alice", "bob", domain.Page{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMessageService_PersistFailurePushesNothing(t *testing.T) {
	repo := new(MockMessageRepo)
	reg := presence.NewRegistry(discardLogger())
	svc := service.NewMessageService(repo, reg, nil, 100, discardLogger())
	bob := connect(t, reg, "bob", "bob-1")
	alice := connect(t, reg, "alice", "alice-2")

	storeErr := fmt.Errorf("insert: %w", domain.ErrTransientStore)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(storeErr)

	_, err := svc.Send(context.Background(), service.SendInput{SenderID: "alice", ReceiverID: "bob", Body: "lost", OriginConnID: "alice-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransientStore))
	assert.Equal(t, domain.CodeUnavailable, domain.ErrorCode(err))

	assert.Empty(t, bob.events())
	assert.Empty(t, alice.events())
	repo.AssertExpectations(t)
}

func TestMessageService_OfflineReceiverGetsNotification(t *testing.T) {
	f := newMessageFixture(t, true)
	ctx := context.Background()

	msg, err := f.svc.Send(ctx, service.SendInput{SenderID: "alice", ReceiverID: "bob", Body: "are you there?"})
	require.NoError(t, err)

	list, err := f.notes.List(ctx, "bob", domain.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationMessageArrived, list[0].Type)
	require.NotNil(t, list[0].RelatedID)
	assert.Equal(t, msg.ID, *list[0].RelatedID)
	require.NotNil(t, list[0].Link)
	assert.Equal(t, "/messages/alice", *list[0].Link)

	// An online receiver gets the message live and no notification.
	connect(t, f.registry, "bob", "bob-1")
	_, err = f.svc.Send(ctx, service.SendInput{SenderID: "alice", ReceiverID: "bob", Body: "hello again"})
	require.NoError(t, err)

	count, err := f.notes.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
