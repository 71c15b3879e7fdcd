package service

import "travelmate/internal/domain"

// Presence is the slice of the presence registry the services need.
type Presence interface {
	IsOnline(userID string) bool
	OnlineAmong(ids []string) []string
	SendToUser(userID string, ev domain.Event, except ...string) int
}
