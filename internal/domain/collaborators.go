package domain

import "context"

// Authenticator resolves a bearer token issued by the auth subsystem into a
// user ID.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Profile carries the display fields the core needs to render a user.
type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ProfileProvider is the user-profile collaborator. Missing IDs are simply
// absent from the returned map.
type ProfileProvider interface {
	GetProfiles(ctx context.Context, ids []string) (map[string]Profile, error)
}

// ContactLister is the social-graph collaborator.
type ContactLister interface {
	ListContacts(ctx context.Context, userID string) ([]string, error)
}

// LocationSink receives live location updates; not part of durable state.
type LocationSink interface {
	UpdateLocation(ctx context.Context, userID string, lat, lng float64) error
}
