package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"travelmate/internal/domain"
)

// ConversationService joins stored conversation summaries with presence and
// profile data into the list a client renders.
type ConversationService struct {
	messages domain.MessageRepository
	presence Presence
	profiles domain.ProfileProvider
	log      *slog.Logger
}

func NewConversationService(
	messages domain.MessageRepository,
	presence Presence,
	profiles domain.ProfileProvider,
	log *slog.Logger,
) *ConversationService {
	return &ConversationService{
		messages: messages,
		presence: presence,
		profiles: profiles,
		log:      log,
	}
}

// GetConversationList returns one entry per counterpart, most recent first.
// A failing profile lookup degrades to IDs as names instead of failing the
// whole list.
func (s *ConversationService) GetConversationList(ctx context.Context, userID string) ([]*domain.ConversationView, error) {
	summaries, err := s.messages.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if len(summaries) == 0 {
		return []*domain.ConversationView{}, nil
	}

	ids := lo.Map(summaries, func(c *domain.ConversationSummary, _ int) string { return c.CounterpartID })

	profiles := map[string]domain.Profile{}
	if s.profiles != nil {
		got, err := s.profiles.GetProfiles(ctx, ids)
		if err != nil {
			s.log.Warn("profile lookup failed", "user_id", userID, "error", err)
		} else if got != nil {
			profiles = got
		}
	}

	online := lo.SliceToMap(s.presence.OnlineAmong(ids), func(id string) (string, struct{}) {
		return id, struct{}{}
	})

	views := make([]*domain.ConversationView, 0, len(summaries))
	for _, c := range summaries {
		cp := domain.Counterpart{ID: c.CounterpartID, Name: c.CounterpartID}
		if p, ok := profiles[c.CounterpartID]; ok {
			if p.Name != "" {
				cp.Name = p.Name
			}
			cp.AvatarURL = p.AvatarURL
		}
		_, cp.Online = online[c.CounterpartID]
		views = append(views, &domain.ConversationView{
			Counterpart: cp,
			LastMessage: c.LastMessage,
			UnreadCount: c.UnreadCount,
		})
	}
	return views, nil
}
