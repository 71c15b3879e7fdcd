package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"travelmate/internal/domain"
)

// PresenceService decides who cares about a user's presence and announces
// transitions to them.
type PresenceService struct {
	presence Presence
	messages domain.MessageRepository
	contacts domain.ContactLister
	log      *slog.Logger
}

// NewPresenceService builds the presence service. contacts may be nil, in
// which case only conversation counterparts are interested peers.
func NewPresenceService(
	presence Presence,
	messages domain.MessageRepository,
	contacts domain.ContactLister,
	log *slog.Logger,
) *PresenceService {
	return &PresenceService{
		presence: presence,
		messages: messages,
		contacts: contacts,
		log:      log,
	}
}

// InterestedPeers returns the union of userID's contacts and everyone they
// have a conversation with, sorted.
func (s *PresenceService) InterestedPeers(ctx context.Context, userID string) ([]string, error) {
	var peers []string
	if s.contacts != nil {
		contacts, err := s.contacts.ListContacts(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list contacts: %w", err)
		}
		peers = append(peers, contacts...)
	}

	convs, err := s.messages.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	for _, c := range convs {
		peers = append(peers, c.CounterpartID)
	}

	peers = lo.Uniq(lo.Without(peers, userID, ""))
	slices.Sort(peers)
	return peers, nil
}

// OnlineContacts returns the interested peers of userID that are online.
func (s *PresenceService) OnlineContacts(ctx context.Context, userID string) ([]string, error) {
	peers, err := s.InterestedPeers(ctx, userID)
	if err != nil {
		return nil, err
	}
	online := s.presence.OnlineAmong(peers)
	if online == nil {
		online = []string{}
	}
	return online, nil
}

// Announce pushes presence_changed for userID to every online interested
// peer and returns how many connections it reached.
func (s *PresenceService) Announce(ctx context.Context, userID string, online bool) int {
	peers, err := s.InterestedPeers(ctx, userID)
	if err != nil {
		s.log.Warn("presence announce skipped", "user_id", userID, "online", online, "error", err)
		return 0
	}
	ev := domain.Event{Type: domain.EventPresenceChanged, Payload: domain.PresencePayload{
		UserID: userID,
		Online: online,
	}}
	sent := 0
	for _, peer := range s.presence.OnlineAmong(peers) {
		sent += s.presence.SendToUser(peer, ev)
	}
	return sent
}
